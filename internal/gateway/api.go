package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

// Endpoint names used for errors, metrics, spans and logs.
const (
	OpLogin      = "auth.login"
	OpVerify     = "auth.verify"
	OpProfile    = "auth.me"
	OpLogout     = "auth.logout"
	OpGreeting   = "chat.welcome"
	OpExchange   = "chat.message"
	OpList       = "emails.list"
	OpSend       = "emails.send"
	OpDiscard    = "emails.delete"
	OpDrafts     = "emails.responses"
	OpDraft      = "emails.response"
	OpCategorize = "emails.categorize"
	OpDigest     = "emails.digest"
)

// RequestLoginHandshake asks the backend where to send the user to log in.
func (c *Client) RequestLoginHandshake(ctx context.Context) (*LoginHandshake, error) {
	var out LoginHandshake
	if err := c.do(ctx, call{op: OpLogin, method: http.MethodGet, path: "/auth/login"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCredential asks the backend whether the current credential is valid.
// It never fails: without a credential, with a locally expired one, or on any
// error it reports Valid=false. An explicit rejection still wipes the
// credential like any other call.
func (c *Client) VerifyCredential(ctx context.Context) Verification {
	tok := c.current()
	if tok == nil {
		return Verification{}
	}
	if !tok.Valid() {
		c.logger.Debug("stored credential expired locally", logging.Endpoint(OpVerify))
		return Verification{}
	}

	var out Verification
	if err := c.do(ctx, call{op: OpVerify, method: http.MethodGet, path: "/auth/verify", auth: true}, &out); err != nil {
		return Verification{}
	}
	return out
}

// FetchProfile returns the signed-in user.
func (c *Client) FetchProfile(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, call{op: OpProfile, method: http.MethodGet, path: "/auth/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session remotely and then discards the local credential
// whatever the remote outcome was. The remote error, if any, is returned.
func (c *Client) Logout(ctx context.Context) error {
	var remoteErr error
	if c.HasCredential() {
		remoteErr = c.do(ctx, call{op: OpLogout, method: http.MethodPost, path: "/auth/logout", auth: true}, nil)
	}
	if err := c.wipe(ctx, instrumentation.WipeLogout, "", nil); err != nil && remoteErr == nil {
		return err
	}
	return remoteErr
}

// FetchGreeting returns the welcome text for a new conversation.
func (c *Client) FetchGreeting(ctx context.Context) (*Greeting, error) {
	var out Greeting
	if err := c.do(ctx, call{op: OpGreeting, method: http.MethodGet, path: "/chat/welcome", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exchange sends one chat turn and returns the backend's structured reply.
func (c *Client) Exchange(ctx context.Context, text string) (*ChatResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validationError(OpExchange, "message is empty")
	}

	var out ChatResponse
	body := map[string]string{"message": text}
	if err := c.do(ctx, call{op: OpExchange, method: http.MethodPost, path: "/chat/message", body: body, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMailItems returns up to count summarised emails, optionally filtered by
// a mailbox search query.
func (c *Client) ListMailItems(ctx context.Context, count int, query string) ([]EmailSummary, error) {
	if count < 1 {
		return nil, validationError(OpList, "count must be at least 1")
	}

	q := url.Values{"count": {strconv.Itoa(count)}}
	if query != "" {
		q.Set("query", query)
	}

	var out []EmailSummary
	if err := c.do(ctx, call{op: OpList, method: http.MethodGet, path: "/emails/list", query: q, auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendReply sends a reply to an email.
func (c *Client) SendReply(ctx context.Context, req SendReplyRequest) (*ActionResult, error) {
	if req.EmailID == "" {
		return nil, validationError(OpSend, "email id is required")
	}
	if strings.TrimSpace(req.ReplyContent) == "" {
		return nil, validationError(OpSend, "reply content is empty")
	}

	var out ActionResult
	if err := c.do(ctx, call{op: OpSend, method: http.MethodPost, path: "/emails/send", body: req, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscardItem moves an email to the trash. Without confirm the backend only
// answers with a request for confirmation.
func (c *Client) DiscardItem(ctx context.Context, emailID string, confirm bool) (*ActionResult, error) {
	if emailID == "" {
		return nil, validationError(OpDiscard, "email id is required")
	}

	body := struct {
		EmailID string `json:"email_id"`
		Confirm bool   `json:"confirm"`
	}{emailID, confirm}

	var out ActionResult
	if err := c.do(ctx, call{op: OpDiscard, method: http.MethodPost, path: "/emails/delete", body: body, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DraftReplies generates reply suggestions for the count most recent emails.
func (c *Client) DraftReplies(ctx context.Context, count int, tone string) ([]ReplyDraft, error) {
	if count < 1 {
		return nil, validationError(OpDrafts, "count must be at least 1")
	}

	q := url.Values{"count": {strconv.Itoa(count)}}
	if tone != "" {
		q.Set("tone", tone)
	}

	var out []ReplyDraft
	if err := c.do(ctx, call{op: OpDrafts, method: http.MethodGet, path: "/emails/responses", query: q, auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DraftReply generates a reply suggestion for one email.
func (c *Client) DraftReply(ctx context.Context, emailID, tone string) (*ReplyDraft, error) {
	switch emailID {
	case "":
		return nil, validationError(OpDraft, "email id is required")
	case ".", "..":
		return nil, validationError(OpDraft, "invalid email id")
	}

	q := url.Values{}
	if tone != "" {
		q.Set("tone", tone)
	}

	var out ReplyDraft
	if err := c.do(ctx, call{op: OpDraft, method: http.MethodGet, path: "/emails/response/" + url.PathEscape(emailID), query: q, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Categorize groups the count most recent emails.
func (c *Client) Categorize(ctx context.Context, count int) ([]EmailCategory, error) {
	if count < 1 {
		return nil, validationError(OpCategorize, "count must be at least 1")
	}

	var out []EmailCategory
	q := url.Values{"count": {strconv.Itoa(count)}}
	if err := c.do(ctx, call{op: OpCategorize, method: http.MethodGet, path: "/emails/categorize", query: q, auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Digest builds a daily digest over the count most recent emails.
func (c *Client) Digest(ctx context.Context, count int) (*DailyDigest, error) {
	if count < 1 {
		return nil, validationError(OpDigest, "count must be at least 1")
	}

	var out DailyDigest
	q := url.Values{"count": {strconv.Itoa(count)}}
	if err := c.do(ctx, call{op: OpDigest, method: http.MethodGet, path: "/emails/digest", query: q, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
