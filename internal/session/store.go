// Package session stores the opaque login tokens issued by the REST layer.
// A token maps to exactly one user id; one user may hold many tokens
// (multi-device). The WebSocket layer resolves tokens at upgrade time.
package session

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("session not found")

// Store defines the interface for session token persistence.
type Store interface {
	// Save binds a session token to a user id.
	Save(ctx context.Context, sessionID, userID string) error
	// Resolve returns the user id bound to a token, or ErrSessionNotFound.
	Resolve(ctx context.Context, sessionID string) (string, error)
	// Delete removes a token. No-op if absent.
	Delete(ctx context.Context, sessionID string) error
	// Close releases any underlying resources.
	Close() error
}
