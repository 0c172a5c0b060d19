package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/teemow/inboxchat/internal/config"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
)

const goodToken = "good-token"

// fakeBackend accepts goodToken and answers the routes the commands use.
type fakeBackend struct {
	mu         sync.Mutex
	chatStatus int
	chatTexts  []string
	discarded  []string
	sent       []gateway.SendReplyRequest
	logouts    int
}

func (f *fakeBackend) setChatStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatStatus = code
}

func (f *fakeBackend) chatMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chatTexts...)
}

func (f *fakeBackend) discardedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.discarded...)
}

func (f *fakeBackend) sentReplies() []gateway.SendReplyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.SendReplyRequest(nil), f.sent...)
}

func (f *fakeBackend) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
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
		f.logouts++
		writeJSON(w, map[string]string{"message": "Logged out"})
	case r.URL.Path == "/chat/welcome":
		writeJSON(w, gateway.Greeting{Text: "Hello Jane, what can I do for you?", DisplayName: "Jane"})
	case r.URL.Path == "/chat/message":
		var req struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.chatTexts = append(f.chatTexts, req.Message)
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
		writeJSON(w, []gateway.ReplyDraft{{EmailID: "m1", OriginalSubject: "Launch plan", OriginalSender: "Alice", SuggestedReply: "Thanks!"}})
	case strings.HasPrefix(r.URL.Path, "/emails/response/"):
		id := strings.TrimPrefix(r.URL.Path, "/emails/response/")
		writeJSON(w, gateway.ReplyDraft{EmailID: id, OriginalSubject: "Launch plan", OriginalSender: "Alice", SuggestedReply: "Sounds good."})
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

// testEnv is a fake backend plus a private config and credential file.
type testEnv struct {
	fake           *fakeBackend
	baseURL        string
	configPath     string
	credentialPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := &fakeBackend{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return &testEnv{
		fake:           fake,
		baseURL:        srv.URL,
		configPath:     filepath.Join(dir, "config.yaml"),
		credentialPath: filepath.Join(dir, "credential"),
	}
}

func (e *testEnv) args(args ...string) []string {
	return append([]string{
		"--config", e.configPath,
		"--base-url", e.baseURL,
		"--credential-backend", config.BackendFile,
		"--credential-path", e.credentialPath,
		"--log-level", "error",
	}, args...)
}

// storeToken writes token to the credential file as a previous login would.
func (e *testEnv) storeToken(t *testing.T, token string) {
	t.Helper()
	store, err := credstore.Open(context.Background(), config.CredentialConfig{Backend: config.BackendFile, Path: e.credentialPath})
	if err != nil {
		t.Fatalf("credstore.Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(context.Background(), token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func (e *testEnv) storedToken(t *testing.T) string {
	t.Helper()
	store, err := credstore.Open(context.Background(), config.CredentialConfig{Backend: config.BackendFile, Path: e.credentialPath})
	if err != nil {
		t.Fatalf("credstore.Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	token, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return token
}

// run executes the command line with stdin and returns everything written
// to stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(e.args(args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
