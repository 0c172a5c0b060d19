package assistant_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
)

const goodToken = "good-token"

// fakeBackend accepts goodToken and answers every route the tools use.
type fakeBackend struct {
	mu         sync.Mutex
	chatStatus int
	discarded  []string
	sent       []gateway.SendReplyRequest
}

func (f *fakeBackend) setChatStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatStatus = code
}

func (f *fakeBackend) sentReplies() []gateway.SendReplyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.SendReplyRequest(nil), f.sent...)
}

func (f *fakeBackend) discardedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.discarded...)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/auth/login" {
		writeJSON(w, gateway.LoginHandshake{RedirectURL: "https://accounts.example.com/o/oauth2/auth?state=s1", State: "s1"})
		return
	}
	if r.URL.Query().Get("token") != goodToken {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"detail": "Invalid or expired token"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/auth/verify":
		writeJSON(w, gateway.Verification{Valid: true, Email: "jane@example.com"})
	case r.URL.Path == "/auth/me":
		writeJSON(w, gateway.UserProfile{ID: "u1", Email: "jane@example.com", Name: "Jane"})
	case r.URL.Path == "/auth/logout":
		writeJSON(w, map[string]string{"message": "Logged out"})
	case r.URL.Path == "/chat/welcome":
		writeJSON(w, gateway.Greeting{Text: "Hello Jane, what can I do for you?", DisplayName: "Jane"})
	case r.URL.Path == "/chat/message":
		if f.chatStatus != 0 {
			w.WriteHeader(f.chatStatus)
			writeJSON(w, map[string]string{"detail": "assistant unavailable"})
			return
		}
		writeJSON(w, gateway.ChatResponse{
			Text:       "Here are your emails",
			ActionType: gateway.ActionReadEmails,
			Emails:     sampleEmails(),
		})
	case r.URL.Path == "/emails/list":
		writeJSON(w, sampleEmails())
	case r.URL.Path == "/emails/responses":
		writeJSON(w, []gateway.ReplyDraft{{EmailID: "m1", SuggestedReply: "Thanks!", Tone: r.URL.Query().Get("tone")}})
	case strings.HasPrefix(r.URL.Path, "/emails/response/"):
		writeJSON(w, gateway.ReplyDraft{EmailID: strings.TrimPrefix(r.URL.Path, "/emails/response/"), SuggestedReply: "Sounds good."})
	case r.URL.Path == "/emails/categorize":
		writeJSON(w, []gateway.EmailCategory{{Name: "work", Count: 2, Emails: sampleEmails()}})
	case r.URL.Path == "/emails/digest":
		writeJSON(w, gateway.DailyDigest{Date: "2026-10-17", TotalEmails: 2, Summary: "Two emails about the launch."})
	case r.URL.Path == "/emails/send":
		var req gateway.SendReplyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.sent = append(f.sent, req)
		writeJSON(w, gateway.ActionResult{Success: true, Message: "Reply sent successfully", Action: gateway.ActionSendEmail, EmailID: req.EmailID})
	case r.URL.Path == "/emails/delete":
		var req struct {
			EmailID string `json:"email_id"`
			Confirm bool   `json:"confirm"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.EmailID == "missing" {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"detail": "Email not found"})
			return
		}
		f.discarded = append(f.discarded, req.EmailID)
		writeJSON(w, gateway.ActionResult{Success: true, Message: "Email moved to trash", Action: gateway.ActionDeleteEmail, EmailID: req.EmailID})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func sampleEmails() []gateway.EmailSummary {
	return []gateway.EmailSummary{
		{
			Email:   gateway.Email{ID: "m1", ThreadID: "t1", Sender: "Alice", SenderEmail: "alice@example.com", Subject: "Launch plan", Date: "2026-10-16", IsUnread: true},
			Summary: "Alice shares the launch plan.",
		},
		{
			Email:    gateway.Email{ID: "m2", ThreadID: "t2", Sender: "Bob", SenderEmail: "bob@example.com", Subject: "Lunch?", Date: "2026-10-15"},
			Summary:  "Bob asks about lunch.",
			Category: "personal",
		},
	}
}

// newToolContext wires a ServerContext to a fake backend. storedToken is the
// credential found in the store at startup; empty means signed out.
func newToolContext(t *testing.T, storedToken string, opts server.Options) (*server.ServerContext, *fakeBackend) {
	t.Helper()
	ctx := context.Background()

	fake := &fakeBackend{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := gateway.New(ctx, gateway.Options{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Store:      credstore.NewMemoryStore(storedToken),
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}

	sess := session.New(client, session.Options{Logger: logging.Discard()})
	t.Cleanup(sess.Close)

	opts.Gateway = client
	opts.Session = sess
	opts.Conversation = conversation.New(client, conversation.Options{Gate: sess, Logger: logging.Discard()})
	opts.Logger = logging.Discard()

	sc, err := server.NewServerContext(ctx, opts)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, fake
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultText returns the text of a single-text result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}
