package credstore

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "jane@example.com",
		"name":  "Jane",
		"exp":   exp.Unix(),
	})
	raw, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	c, ok := ParseClaims(signedToken(t, exp))
	require.True(t, ok)

	assert.Equal(t, "user-1", c.Subject)
	assert.Equal(t, "jane@example.com", c.Email)
	assert.Equal(t, "Jane", c.Name)
	assert.True(t, c.ExpiresAt.Equal(exp))
}

func TestParseClaims_Opaque(t *testing.T) {
	_, ok := ParseClaims("abc")
	assert.False(t, ok)
}

func TestTokenFromString(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantValid bool
	}{
		{"opaque token has no expiry", "abc", true},
		{"live jwt", signedToken(t, time.Now().Add(time.Hour)), true},
		{"expired jwt", signedToken(t, time.Now().Add(-time.Hour)), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := TokenFromString(tt.raw)
			assert.Equal(t, tt.raw, tok.AccessToken)
			assert.Equal(t, "Bearer", tok.TokenType)
			assert.Equal(t, tt.wantValid, tok.Valid())
		})
	}
}
