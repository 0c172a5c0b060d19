package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/inboxchat/internal/gateway"
)

// ErrHandshakeRejected is returned by CompleteHandshake when the redirect
// carried an error instead of a token.
var ErrHandshakeRejected = errors.New("login handshake rejected")

const handshakeErrorMessage = "Could not start login. Please try again."

// Callback is what the login redirect delivered: a token on success, an error
// description on failure.
type Callback struct {
	Token string
	Error string
}

// BeginHandshake asks the backend where to send the user to sign in. A
// failure moves the session to StatusError, except that an authenticated
// session only gains the error message.
func (s *Store) BeginHandshake(ctx context.Context) (*gateway.LoginHandshake, error) {
	hs, err := s.backend.RequestLoginHandshake(ctx)
	if err != nil {
		s.begin(ctx, func(prev State) State {
			if prev.Status == StatusAuthenticated {
				prev.Error = handshakeErrorMessage
				return prev
			}
			return State{Status: StatusError, Error: handshakeErrorMessage}
		})
		return nil, fmt.Errorf("failed to start login: %w", err)
	}
	return hs, nil
}

// CompleteHandshake finishes a login with whatever the redirect delivered.
// A token is handed to SetToken; anything else ends in
// StatusUnauthenticated with a visible error.
func (s *Store) CompleteHandshake(ctx context.Context, cb Callback) error {
	if token := strings.TrimSpace(cb.Token); token != "" {
		return s.SetToken(ctx, token)
	}

	reason := strings.TrimSpace(cb.Error)
	if reason == "" {
		reason = "no token received"
	}
	s.begin(ctx, func(State) State {
		return State{Status: StatusUnauthenticated, Error: "Login failed: " + reason}
	})
	s.logger.Info("login handshake rejected")
	return fmt.Errorf("%w: %s", ErrHandshakeRejected, reason)
}
