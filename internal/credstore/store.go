package credstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/teemow/inboxchat/internal/config"
)

// Key is the fixed name the credential is stored under.
const Key = "auth_token"

// Store persists one credential value.
type Store interface {
	// Load returns the stored credential, or "" if none is stored.
	Load(ctx context.Context) (string, error)
	// Save replaces the stored credential.
	Save(ctx context.Context, token string) error
	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the store for the configured backend.
func Open(ctx context.Context, cfg config.CredentialConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Path), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}

// MemoryStore keeps the credential in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store seeded with token ("" for empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func (m *MemoryStore) Close() error { return nil }
