// Package logging provides structured logging utilities for inboxchat.
//
// All components log through log/slog. This package centralizes the attribute
// names used across the session, conversation and gateway layers, builds the
// process logger from configuration, and provides helpers that keep PII and
// credentials out of log output.
//
// # Usage Patterns
//
// Create a component logger:
//
//	logger := logging.WithComponent(slog.Default(), "session")
//	logger.Info("session restored", logging.UserHash(profile.Email))
//
// Log a gateway failure without leaking the credential:
//
//	logger.Warn("request failed",
//	    logging.Endpoint("chat.message"),
//	    logging.Err(err))
//
// # Security Considerations
//
//   - User emails are hashed so log lines can be correlated without exposing them
//   - Credentials are never logged; SanitizeToken reports only their length
package logging
