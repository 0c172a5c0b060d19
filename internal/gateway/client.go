package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/notify"
)

// DefaultTimeout bounds each call when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// maxResponseBytes caps how much of a success body is decoded.
const maxResponseBytes = 8 << 20

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, e.g. http://localhost:8000. Required.
	BaseURL string

	// HTTPClient defaults to a client without its own timeout; deadlines come
	// from Timeout instead.
	HTTPClient *http.Client

	// Timeout bounds every call. Expiry is reported as KindNetwork.
	Timeout time.Duration

	// Store persists the credential. Defaults to an in-memory store.
	Store credstore.Store

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// WipeEvent is published when the gateway discards the credential.
type WipeEvent struct {
	Reason string // instrumentation.WipeAuthError, WipeLogout or WipeExplicit
	Op     string // endpoint that triggered an auth wipe, empty otherwise
}

// Client is the BackendGateway. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	store   credstore.Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu    sync.RWMutex
	token *oauth2.Token

	wipes *notify.Hub[WipeEvent]
}

// New creates a Client and loads any credential persisted in opts.Store.
// A store that cannot be read is treated as empty.
func New(ctx context.Context, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", opts.BaseURL)
	}

	c := &Client{
		baseURL: base,
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		store:   opts.Store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		wipes:   notify.New[WipeEvent](),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.store == nil {
		c.store = credstore.NewMemoryStore("")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = logging.WithComponent(c.logger, "gateway")

	raw, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("ignoring unreadable stored credential", logging.Err(err))
	} else if raw != "" {
		c.token = credstore.TokenFromString(raw)
		c.logger.Debug("loaded stored credential", slog.String("token", logging.SanitizeToken(raw)))
	}

	return c, nil
}

// SetCredential stores raw as the current credential, in memory and durably.
func (c *Client) SetCredential(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return validationError("credential.set", "credential is empty")
	}

	c.mu.Lock()
	c.token = credstore.TokenFromString(raw)
	c.mu.Unlock()

	if err := c.store.Save(ctx, raw); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// ClearCredential discards the credential.
func (c *Client) ClearCredential(ctx context.Context) error {
	return c.wipe(ctx, instrumentation.WipeExplicit, "", nil)
}

// HasCredential reports whether a credential is held.
func (c *Client) HasCredential() bool {
	return c.current() != nil
}

// Claims returns the unverified claims of the current credential, if it is a JWT.
func (c *Client) Claims() (credstore.Claims, bool) {
	tok := c.current()
	if tok == nil {
		return credstore.Claims{}, false
	}
	return credstore.ParseClaims(tok.AccessToken)
}

// OnCredentialWiped registers fn to be called after every wipe. It returns a
// function that removes the registration.
func (c *Client) OnCredentialWiped(fn func(WipeEvent)) func() {
	return c.wipes.Subscribe(fn)
}

func (c *Client) current() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// wipe clears the credential. When sent is non-nil the wipe only happens if
// sent is still the current credential, so a rejection of an old token does
// not discard a newer one.
func (c *Client) wipe(ctx context.Context, reason, op string, sent *oauth2.Token) error {
	c.mu.Lock()
	if sent != nil && c.token != sent {
		c.mu.Unlock()
		return nil
	}
	had := c.token != nil
	c.token = nil
	c.mu.Unlock()

	err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		err = fmt.Errorf("failed to clear stored credential: %w", err)
		c.logger.Warn("credential store clear failed", logging.Err(err))
	}

	if had {
		c.metrics.RecordCredentialWipe(ctx, reason)
		c.logger.Info("credential discarded", slog.String("reason", reason), logging.Endpoint(op))
		c.wipes.Publish(WipeEvent{Reason: reason, Op: op})
	}
	return err
}

// call describes one backend request.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

// do performs c and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, req call, out any) error {
	start := time.Now()

	ctx, span := instrumentation.StartBackendSpan(ctx, req.op)
	defer span.End()

	status, err := c.roundTrip(ctx, req, out)
	duration := time.Since(start)

	if status != 0 {
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrHTTPStatus, status))
	}

	if err != nil {
		kind := string(KindOf(err))
		span.SetAttributes(attribute.String(instrumentation.SpanAttrErrorKind, kind))
		instrumentation.SetSpanStatus(span, err)
		c.metrics.RecordBackendRequest(ctx, req.op, instrumentation.StatusError, kind, duration)
		c.logger.Warn("backend request failed",
			logging.Endpoint(req.op),
			slog.String("kind", kind),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(err))
		return err
	}

	instrumentation.SetSpanStatus(span, nil)
	c.metrics.RecordBackendRequest(ctx, req.op, instrumentation.StatusSuccess, "", duration)
	c.logger.Debug("backend request completed",
		logging.Endpoint(req.op),
		slog.Int("http_status", status),
		slog.Duration(logging.KeyDuration, duration))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req call, out any) (int, error) {
	var tok *oauth2.Token
	if req.auth {
		tok = c.current()
		if tok == nil {
			return 0, &Error{Kind: KindAuth, Op: req.op, Detail: "not signed in"}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(req.path)
	q := url.Values{}
	for k, vs := range req.query {
		q[k] = vs
	}
	if tok != nil {
		q.Set("token", tok.AccessToken)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, validationError(req.op, fmt.Sprintf("cannot encode request: %v", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, validationError(req.op, err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok != nil {
		tok.SetAuthHeader(httpReq)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		gerr := &Error{Kind: KindNetwork, Op: req.op, Err: err}
		if errors.Is(err, context.DeadlineExceeded) {
			gerr.Detail = fmt.Sprintf("no response within %s", c.timeout)
		}
		return 0, gerr
	}
	defer resp.Body.Close()

	if gerr := classifyResponse(req.op, resp); gerr != nil {
		if gerr.Kind == KindAuth {
			_ = c.wipe(ctx, instrumentation.WipeAuthError, req.op, tok)
		}
		return resp.StatusCode, gerr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return resp.StatusCode, &Error{Kind: KindNetwork, Op: req.op, Detail: "response body timed out", Err: err}
		}
		return resp.StatusCode, &Error{Kind: KindServer, Op: req.op, Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return resp.StatusCode, nil
}
