package credstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Claims are the fields the backend puts into its session JWT. They are read
// without verifying the signature and only ever used as hints; the backend
// stays the authority on validity.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// ParseClaims decodes raw as a JWT. ok is false for opaque tokens.
func ParseClaims(raw string) (Claims, bool) {
	var sc sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &sc); err != nil {
		return Claims{}, false
	}

	c := Claims{
		Subject: sc.Subject,
		Email:   sc.Email,
		Name:    sc.Name,
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time
	}
	return c, true
}

// TokenFromString wraps a raw credential as a bearer token. When raw is a JWT
// carrying an exp claim, the token's Expiry is set from it so that
// Token.Valid reports local expiry.
func TokenFromString(raw string) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
	}
	if c, ok := ParseClaims(raw); ok {
		tok.Expiry = c.ExpiresAt
	}
	return tok
}
