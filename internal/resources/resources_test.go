package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
)

func backend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("token") != "good-token" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid or expired token"}`))
		return
	}

	var v any
	switch r.URL.Path {
	case "/auth/verify":
		v = gateway.Verification{Valid: true, Email: "jane@example.com"}
	case "/auth/me":
		v = gateway.UserProfile{ID: "u1", Email: "jane@example.com", Name: "Jane"}
	case "/chat/welcome":
		v = gateway.Greeting{Text: "Hello Jane"}
	case "/chat/message":
		v = gateway.ChatResponse{
			Text:       "Here you go",
			ActionType: gateway.ActionReadEmails,
			Emails: []gateway.EmailSummary{
				{Email: gateway.Email{ID: "m1", Subject: "Launch plan"}, Summary: "The launch plan."},
			},
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func newServerContext(t *testing.T, token string) *server.ServerContext {
	t.Helper()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(backend))
	t.Cleanup(srv.Close)

	gw, err := gateway.New(ctx, gateway.Options{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Store:      credstore.NewMemoryStore(token),
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	sess := session.New(gw, session.Options{Logger: logging.Discard()})
	t.Cleanup(sess.Close)

	sc, err := server.NewServerContext(ctx, server.Options{
		Gateway:      gw,
		Session:      sess,
		Conversation: conversation.New(gw, conversation.Options{Gate: sess, Logger: logging.Discard()}),
		Logger:       logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func read(t *testing.T, uri string, handler func(mcp.ReadResourceRequest, *server.ServerContext) ([]mcp.ResourceContents, error), sc *server.ServerContext, into any) {
	t.Helper()

	var req mcp.ReadResourceRequest
	req.Params.URI = uri

	contents, err := handler(req, sc)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok, "contents is %T", contents[0])
	assert.Equal(t, uri, text.URI)
	assert.Equal(t, "application/json", text.MIMEType)
	require.NoError(t, json.Unmarshal([]byte(text.Text), into))
}

func TestRegisterResources(t *testing.T) {
	sc := newServerContext(t, "")
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithResourceCapabilities(false, false))
	assert.NoError(t, RegisterResources(s, sc))
}

func TestProfileResource(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		sc := newServerContext(t, "")
		sc.Session().Initialize(context.Background())

		var got profileData
		read(t, ProfileURI, handleProfile, sc, &got)
		assert.Equal(t, session.StatusUnauthenticated, got.Status)
		assert.Empty(t, got.Email)
	})

	t.Run("signed in", func(t *testing.T) {
		sc := newServerContext(t, "good-token")
		sc.Session().Initialize(context.Background())

		var got profileData
		read(t, ProfileURI, handleProfile, sc, &got)
		assert.Equal(t, session.StatusAuthenticated, got.Status)
		assert.Equal(t, "jane@example.com", got.Email)
		assert.Equal(t, "Jane", got.Name)
		assert.Equal(t, "u1", got.ID)
	})
}

func TestConversationResources(t *testing.T) {
	ctx := context.Background()
	sc := newServerContext(t, "good-token")

	var empty transcriptData
	read(t, TranscriptURI, handleTranscript, sc, &empty)
	assert.Empty(t, empty.Messages)

	var none []gateway.EmailSummary
	read(t, LatestEmailsURI, handleLatestEmails, sc, &none)
	assert.Empty(t, none)

	sc.Session().Initialize(ctx)
	sc.Conversation().Initialize(ctx)
	require.NoError(t, sc.Conversation().SendTurn(ctx, "show my emails"))

	var transcript transcriptData
	read(t, TranscriptURI, handleTranscript, sc, &transcript)
	require.Len(t, transcript.Messages, 3)
	assert.Equal(t, "Hello Jane", transcript.Messages[0].Content)
	assert.Equal(t, "show my emails", transcript.Messages[1].Content)
	assert.Equal(t, "Here you go", transcript.Messages[2].Content)
	assert.False(t, transcript.Busy)

	var latest []gateway.EmailSummary
	read(t, LatestEmailsURI, handleLatestEmails, sc, &latest)
	require.Len(t, latest, 1)
	assert.Equal(t, "m1", latest[0].Email.ID)
}
