package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/notify"
)

// Status is the session state.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusVerifying       Status = "verifying"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// ErrSuperseded is returned by SetToken when a newer session operation
// started before it finished. Its result was discarded.
var ErrSuperseded = errors.New("superseded by a newer session operation")

// State is a snapshot of the session. Profile is set if and only if Status is
// StatusAuthenticated.
type State struct {
	Status  Status
	Profile *gateway.UserProfile
	Error   string
}

func (s State) clone() State {
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	return s
}

// Backend is the part of the gateway the session needs. *gateway.Client
// implements it.
type Backend interface {
	RequestLoginHandshake(ctx context.Context) (*gateway.LoginHandshake, error)
	VerifyCredential(ctx context.Context) gateway.Verification
	FetchProfile(ctx context.Context) (*gateway.UserProfile, error)
	SetCredential(ctx context.Context, raw string) error
	ClearCredential(ctx context.Context) error
	Logout(ctx context.Context) error
	OnCredentialWiped(fn func(gateway.WipeEvent)) func()
}

// Options configures a Store.
type Options struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Store is the SessionStore. It is safe for concurrent use.
type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	group singleflight.Group

	mu    sync.Mutex
	state State
	epoch uint64
	seq   uint64

	pubMu     sync.Mutex
	published uint64
	subs      *notify.Hub[State]

	stopWipes func()
}

// New creates a Store in StatusUninitialized. The store follows credential
// wipes performed by the backend until Close is called.
func New(backend Backend, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		backend: backend,
		logger:  logging.WithComponent(logger, "session"),
		metrics: opts.Metrics,
		state:   State{Status: StatusUninitialized},
		subs:    notify.New[State](),
	}
	s.stopWipes = backend.OnCredentialWiped(s.onCredentialWiped)
	return s
}

// Close stops following backend credential wipes.
func (s *Store) Close() {
	s.stopWipes()
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Authenticated reports whether the session is in StatusAuthenticated.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == StatusAuthenticated
}

// Subscribe registers fn to receive every new state. fn runs synchronously on
// the goroutine that changed the state and must not call Store methods that
// change state.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.subs.Subscribe(fn)
}

// Initialize restores the session from the stored credential. It never
// reports an error: any failure ends in StatusUnauthenticated. Overlapping
// calls share one verification. If ctx ends first, the current state is
// returned and verification continues in the background.
func (s *Store) Initialize(ctx context.Context) State {
	ch := s.group.DoChan("initialize", func() (any, error) {
		return s.initialize(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return res.Val.(State)
	case <-ctx.Done():
		return s.State()
	}
}

func (s *Store) initialize(ctx context.Context) State {
	epoch := s.begin(ctx, func(prev State) State {
		return State{Status: StatusVerifying, Error: prev.Error}
	})

	next := func(prev State) State {
		return State{Status: StatusUnauthenticated, Error: prev.Error}
	}

	if v := s.backend.VerifyCredential(ctx); v.Valid {
		profile, err := s.backend.FetchProfile(ctx)
		if err != nil {
			s.logger.Debug("profile fetch failed during session restore", logging.Err(err))
		} else {
			s.logger.Debug("session restored", logging.UserHash(profile.Email))
			next = func(prev State) State {
				return State{Status: StatusAuthenticated, Profile: profile, Error: prev.Error}
			}
		}
	}

	if !s.settle(ctx, epoch, next) {
		s.logger.Debug("discarded stale session restore result")
	}
	return s.State()
}

// SetToken completes a login with the credential delivered by the redirect.
// On failure the credential is cleared, the session becomes
// StatusUnauthenticated with a user facing Error, and the cause is returned.
func (s *Store) SetToken(ctx context.Context, token string) error {
	epoch := s.begin(ctx, func(State) State {
		return State{Status: StatusVerifying}
	})

	profile, err := s.adopt(ctx, token)
	if err != nil {
		if !s.isCurrent(epoch) {
			return ErrSuperseded
		}
		if cerr := s.backend.ClearCredential(ctx); cerr != nil {
			s.logger.Warn("failed to clear rejected credential", logging.Err(cerr))
		}
		s.settle(ctx, epoch, func(State) State {
			return State{Status: StatusUnauthenticated, Error: loginErrorMessage(err)}
		})
		s.logger.Info("login failed", slog.String("kind", string(gateway.KindOf(err))), logging.Err(err))
		return fmt.Errorf("login failed: %w", err)
	}

	if !s.settle(ctx, epoch, func(State) State {
		return State{Status: StatusAuthenticated, Profile: profile}
	}) {
		return ErrSuperseded
	}
	s.logger.Info("login completed", logging.UserHash(profile.Email))
	return nil
}

func (s *Store) adopt(ctx context.Context, token string) (*gateway.UserProfile, error) {
	if err := s.backend.SetCredential(ctx, token); err != nil {
		return nil, err
	}
	return s.backend.FetchProfile(ctx)
}

// Logout ends the session. The local credential and state are cleared even
// when the remote logout fails. Any restore or login still in flight when the
// remote call returns is discarded.
func (s *Store) Logout(ctx context.Context) {
	s.begin(ctx, func(prev State) State { return prev })

	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("remote logout failed, local session cleared anyway", logging.Err(err))
	}

	s.begin(ctx, func(State) State {
		return State{Status: StatusUnauthenticated}
	})
}

// ClearError removes the visible error without changing the status.
func (s *Store) ClearError() {
	s.settle(context.Background(), 0, func(prev State) State {
		prev.Error = ""
		return prev
	})
}

// onCredentialWiped drops an authenticated session when the gateway discards
// the credential. Sessions in Verifying are left to the operation in flight.
func (s *Store) onCredentialWiped(ev gateway.WipeEvent) {
	applied := s.settle(context.Background(), 0, func(prev State) State {
		if prev.Status != StatusAuthenticated {
			return prev
		}
		return State{Status: StatusUnauthenticated}
	})
	if applied {
		s.logger.Info("session ended by credential wipe",
			slog.String("reason", ev.Reason), logging.Endpoint(ev.Op))
	}
}

// begin advances the epoch and applies fn unconditionally. The returned
// epoch identifies the operation.
func (s *Store) begin(ctx context.Context, fn func(State) State) uint64 {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	prev, next, seq, changed := s.applyLocked(fn)
	s.mu.Unlock()

	if changed {
		s.emit(ctx, prev, next, seq)
	}
	return epoch
}

// settle applies fn if epoch is still current, or always when epoch is 0. It
// reports whether the state changed.
func (s *Store) settle(ctx context.Context, epoch uint64, fn func(State) State) bool {
	s.mu.Lock()
	if epoch != 0 && epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	prev, next, seq, changed := s.applyLocked(fn)
	s.mu.Unlock()

	if changed {
		s.emit(ctx, prev, next, seq)
	}
	return changed || epoch != 0
}

func (s *Store) applyLocked(fn func(State) State) (prev, next State, seq uint64, changed bool) {
	prev = s.state
	next = fn(prev)
	if next.Status != StatusAuthenticated {
		next.Profile = nil
	}
	if next == prev {
		return prev, next, s.seq, false
	}
	s.state = next
	s.seq++
	return prev, next.clone(), s.seq, true
}

func (s *Store) isCurrent(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

func (s *Store) emit(ctx context.Context, prev, next State, seq uint64) {
	if prev.Status != next.Status {
		var delta int64
		switch {
		case next.Status == StatusAuthenticated:
			delta = 1
		case prev.Status == StatusAuthenticated:
			delta = -1
		}
		s.metrics.RecordSessionTransition(ctx, string(prev.Status), string(next.Status), delta)
		s.logger.Debug("session transition",
			slog.String("from", string(prev.Status)),
			slog.String("to", string(next.Status)))
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if seq <= s.published {
		return
	}
	s.published = seq
	s.subs.Publish(next)
}

func loginErrorMessage(err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case gateway.KindAuth:
		return "The server rejected the login. Please sign in again."
	case gateway.KindValidation:
		return "No login token was received. Please sign in again."
	default:
		return "Failed to load your profile. Please try again."
	}
}
