package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
)

// Attribute keys shared by every package that logs.
const (
	KeyComponent = "component"
	KeyEndpoint  = "endpoint"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyExchange  = "exchange_id"
)

// WithComponent tags every record of logger with the emitting component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Endpoint is the logical backend endpoint, e.g. "chat.message".
func Endpoint(endpoint string) slog.Attr { return slog.String(KeyEndpoint, endpoint) }

// Status is a session status or call outcome.
func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Exchange identifies one chat exchange.
func Exchange(id string) slog.Attr { return slog.String(KeyExchange, id) }

// Err returns the error attribute. A nil error yields an empty group, which
// slog drops, so Err(maybeNil) is always safe.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// UserHash identifies a user by a truncated SHA-256 of their email so log
// lines can be correlated without storing the address.
func UserHash(email string) slog.Attr {
	if email == "" {
		return slog.String(KeyUserHash, "")
	}
	sum := sha256.Sum256([]byte(email))
	return slog.String(KeyUserHash, "user:"+hex.EncodeToString(sum[:8]))
}

// SanitizeToken stands in for a credential in log output. Only its length is
// reported.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return "[token:" + strconv.Itoa(len(token)) + " chars]"
}
