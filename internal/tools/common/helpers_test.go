package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
)

// newTestServerContext builds a ServerContext over a fake backend that knows
// jane@example.com. The session is initialized when signIn is true.
func newTestServerContext(t *testing.T, signIn bool, opts server.Options) *server.ServerContext {
	t.Helper()
	ctx := context.Background()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/verify":
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": true})
		case "/auth/me":
			_ = json.NewEncoder(w).Encode(gateway.UserProfile{ID: "u1", Email: "jane@example.com", Name: "Jane"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(backend.Close)

	client, err := gateway.New(ctx, gateway.Options{
		BaseURL:    backend.URL,
		HTTPClient: backend.Client(),
		Store:      credstore.NewMemoryStore("tok"),
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}

	sess := session.New(client, session.Options{Logger: logging.Discard()})
	t.Cleanup(sess.Close)
	if signIn {
		if st := sess.Initialize(ctx); st.Status != session.StatusAuthenticated {
			t.Fatalf("session status = %s, want authenticated", st.Status)
		}
	}

	opts.Gateway = client
	opts.Session = sess
	opts.Conversation = conversation.New(client, conversation.Options{Gate: sess, Logger: logging.Discard()})
	opts.Logger = logging.Discard()

	sc, err := server.NewServerContext(ctx, opts)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create test provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}
