package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/notify"
)

const (
	// FallbackGreeting seeds the log when the backend greeting is unavailable.
	FallbackGreeting = "Hi! I'm your email assistant. Ask me to show your latest emails or help you reply to one."

	// ApologyText replaces the placeholder of a failed exchange.
	ApologyText = "Sorry, I ran into a problem handling that request. Please try again."
)

var (
	// ErrBusy is returned by SendTurn while another exchange is in flight.
	ErrBusy = errors.New("an exchange is already in progress")

	// ErrNotAuthenticated is returned by SendTurn when the session gate is closed.
	ErrNotAuthenticated = errors.New("not signed in")
)

// Backend is the part of the gateway the conversation needs. *gateway.Client
// implements it.
type Backend interface {
	FetchGreeting(ctx context.Context) (*gateway.Greeting, error)
	Exchange(ctx context.Context, text string) (*gateway.ChatResponse, error)
}

// Gate reports whether exchanges are allowed. *session.Store implements it.
type Gate interface {
	Authenticated() bool
}

// Options configures a Store.
type Options struct {
	// Gate closes the store while the session is not authenticated. Nil
	// means always open.
	Gate Gate

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is the ConversationStore. It is safe for concurrent use.
type Store struct {
	backend Backend
	gate    Gate
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time

	ids atomic.Uint64

	mu       sync.Mutex
	messages []Message
	latest   []gateway.EmailSummary
	err      string
	inflight string // exchange ID, empty when idle
	gen      uint64 // bumped by Reset
	seq      uint64

	pubMu     sync.Mutex
	published uint64
	subs      *notify.Hub[Snapshot]
}

// New creates an empty Store.
func New(backend Backend, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		backend: backend,
		gate:    opts.Gate,
		logger:  logging.WithComponent(logger, "conversation"),
		metrics: opts.Metrics,
		now:     now,
		subs:    notify.New[Snapshot](),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the log in display order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// Busy reports whether an exchange is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != ""
}

// LatestEmails returns the email items of the most recent reply that had any.
func (s *Store) LatestEmails() []gateway.EmailSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.latest)
}

// Error returns the cause of the last failed exchange, if not cleared.
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// synchronously and must not call Store methods that change state.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.subs.Subscribe(fn)
}

// Initialize seeds an empty log with the backend greeting, or with
// FallbackGreeting if that fails. A non-empty log is left alone. The greeting
// slot is taken before the fetch, so a turn sent meanwhile lands after it.
func (s *Store) Initialize(ctx context.Context) {
	var id string
	var gen uint64
	s.mutate(func() bool {
		if len(s.messages) > 0 {
			return false
		}
		id, gen = s.nextID(), s.gen
		s.messages = append(s.messages, Message{
			ID:        id,
			Role:      RoleAssistant,
			Content:   FallbackGreeting,
			Timestamp: s.now(),
		})
		return true
	})
	if id == "" {
		return
	}

	greeting, err := s.backend.FetchGreeting(ctx)
	switch {
	case err != nil:
		s.logger.Debug("greeting unavailable, using fallback", logging.Err(err))
		return
	case strings.TrimSpace(greeting.Text) == "":
		s.logger.Debug("empty greeting, using fallback")
		return
	}

	s.mutate(func() bool {
		if s.gen != gen {
			return false
		}
		i := slices.IndexFunc(s.messages, func(m Message) bool { return m.ID == id })
		if i < 0 {
			return false
		}
		s.messages[i].Content = greeting.Text
		return true
	})
}

// SendTurn runs one exchange for text. Blank text is rejected with a
// validation error, and a turn while another is in flight with ErrBusy;
// neither touches the log. Backend failures are not returned: they become an
// apology message and are kept for Error.
func (s *Store) SendTurn(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &gateway.Error{Kind: gateway.KindValidation, Op: gateway.OpExchange, Detail: "message is empty"}
	}
	if s.gate != nil && !s.gate.Authenticated() {
		return ErrNotAuthenticated
	}

	exchangeID := uuid.NewString()
	var started bool
	s.mutate(func() bool {
		if s.inflight != "" {
			return false
		}
		ts := s.now()
		s.messages = append(s.messages,
			Message{ID: s.nextID(), Role: RoleUser, Content: text, Timestamp: ts, ExchangeID: exchangeID},
			Message{ID: s.nextID(), Role: RoleAssistant, Timestamp: ts, Placeholder: true, ExchangeID: exchangeID},
		)
		s.inflight = exchangeID
		started = true
		return true
	})
	if !started {
		s.metrics.RecordChatExchange(ctx, instrumentation.ExchangeRejected, "", 0)
		return ErrBusy
	}

	start := time.Now()
	ctx, span := instrumentation.StartExchangeSpan(ctx, exchangeID)
	defer span.End()

	resp, err := s.backend.Exchange(ctx, text)
	duration := time.Since(start)

	var applied bool
	s.mutate(func() bool {
		applied = s.reconcileLocked(exchangeID, resp, err)
		return applied
	})

	logger := s.logger.With(logging.Exchange(exchangeID))
	switch {
	case !applied:
		span.SetAttributes(attribute.Bool(instrumentation.SpanAttrStale, true))
		s.metrics.RecordChatExchange(ctx, instrumentation.ExchangeStale, "", duration)
		logger.Debug("dropped reply for a reset conversation")
	case err != nil:
		instrumentation.SetSpanStatus(span, err)
		s.metrics.RecordChatExchange(ctx, instrumentation.StatusError, gateway.ActionError, duration)
		logger.Warn("exchange failed",
			slog.String("kind", string(gateway.KindOf(err))),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(err))
	default:
		action := instrumentation.BoundedLabel(resp.ActionType, gateway.KnownActions...)
		span.SetAttributes(attribute.String(instrumentation.SpanAttrAction, action))
		instrumentation.SetSpanStatus(span, nil)
		s.metrics.RecordChatExchange(ctx, instrumentation.StatusSuccess, action, duration)
		logger.Debug("exchange completed",
			slog.String("action", action),
			slog.Int("emails", len(resp.Emails)),
			slog.Duration(logging.KeyDuration, duration))
	}
	return nil
}

// reconcileLocked replaces the placeholder of exchangeID with the outcome. It
// reports false if the placeholder no longer exists.
func (s *Store) reconcileLocked(exchangeID string, resp *gateway.ChatResponse, err error) bool {
	if s.inflight == exchangeID {
		s.inflight = ""
	}

	idx := -1
	for i := len(s.messages) - 1; i >= 0; i-- {
		if m := s.messages[i]; m.Placeholder && m.ExchangeID == exchangeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	final := Message{
		ID:         s.messages[idx].ID,
		Role:       RoleAssistant,
		Timestamp:  s.now(),
		ExchangeID: exchangeID,
	}

	if err != nil {
		final.Content = ApologyText
		final.ActionType = gateway.ActionError
		s.err = err.Error()
	} else {
		final.Content = resp.Text
		final.Emails = resp.Emails
		final.SuggestedReplies = resp.SuggestedReplies
		final.ActionType = resp.ActionType
		final.ActionData = resp.ActionData
		if resp.Emails != nil {
			s.latest = resp.Emails
		}
	}

	s.messages[idx] = final
	return true
}

// Reset clears the log, the latest email items and the error, then seeds a
// new greeting. A reply to an exchange started before the reset is dropped.
func (s *Store) Reset(ctx context.Context) {
	s.mutate(func() bool {
		s.messages = nil
		s.latest = nil
		s.err = ""
		s.inflight = ""
		s.gen++
		return true
	})
	s.logger.Debug("conversation reset")
	s.Initialize(ctx)
}

// ClearError forgets the last exchange failure. The log is not touched.
func (s *Store) ClearError() {
	s.mutate(func() bool {
		if s.err == "" {
			return false
		}
		s.err = ""
		return true
	})
}

func (s *Store) nextID() string {
	return fmt.Sprintf("msg-%d", s.ids.Add(1))
}

// mutate runs fn under the lock and, if fn reports a change, publishes the
// new snapshot.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if seq <= s.published {
		return
	}
	s.published = seq
	s.subs.Publish(snap)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:     cloneMessages(s.messages),
		Busy:         s.inflight != "",
		LatestEmails: slices.Clone(s.latest),
		Error:        s.err,
	}
}
