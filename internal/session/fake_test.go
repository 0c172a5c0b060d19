package session

import (
	"context"
	"sync"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/notify"
)

// fakeBackend is a scripted Backend. Hooks must be set before the store uses
// them.
type fakeBackend struct {
	verify    func(ctx context.Context) gateway.Verification
	profile   func(ctx context.Context) (*gateway.UserProfile, error)
	logout    func(ctx context.Context) error
	handshake func(ctx context.Context) (*gateway.LoginHandshake, error)

	mu         sync.Mutex
	credential string
	calls      map[string]int

	wipes *notify.Hub[gateway.WipeEvent]
}

func newFakeBackend(credential string) *fakeBackend {
	return &fakeBackend{
		credential: credential,
		calls:      map[string]int{},
		wipes:      notify.New[gateway.WipeEvent](),
		verify: func(context.Context) gateway.Verification {
			return gateway.Verification{Valid: true}
		},
		profile: func(context.Context) (*gateway.UserProfile, error) {
			return &gateway.UserProfile{ID: "u1", Email: "jane@example.com", Name: "Jane"}, nil
		},
		logout: func(context.Context) error { return nil },
		handshake: func(context.Context) (*gateway.LoginHandshake, error) {
			return &gateway.LoginHandshake{RedirectURL: "https://accounts.example.com/auth", State: "s1"}, nil
		},
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) Credential() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credential
}

func (f *fakeBackend) RequestLoginHandshake(ctx context.Context) (*gateway.LoginHandshake, error) {
	f.hit("handshake")
	return f.handshake(ctx)
}

func (f *fakeBackend) VerifyCredential(ctx context.Context) gateway.Verification {
	f.hit("verify")
	if f.Credential() == "" {
		return gateway.Verification{}
	}
	return f.verify(ctx)
}

func (f *fakeBackend) FetchProfile(ctx context.Context) (*gateway.UserProfile, error) {
	f.hit("profile")
	return f.profile(ctx)
}

func (f *fakeBackend) SetCredential(_ context.Context, raw string) error {
	f.hit("set")
	if raw == "" {
		return &gateway.Error{Kind: gateway.KindValidation, Detail: "credential is empty"}
	}
	f.mu.Lock()
	f.credential = raw
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) ClearCredential(context.Context) error {
	f.hit("clear")
	f.wipe(instrumentation.WipeExplicit, "")
	return nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.hit("logout")
	err := f.logout(ctx)
	f.wipe(instrumentation.WipeLogout, "")
	return err
}

func (f *fakeBackend) OnCredentialWiped(fn func(gateway.WipeEvent)) func() {
	return f.wipes.Subscribe(fn)
}

// wipe mirrors the gateway: the event is published only if a credential was
// held.
func (f *fakeBackend) wipe(reason, op string) {
	f.mu.Lock()
	had := f.credential != ""
	f.credential = ""
	f.mu.Unlock()
	if had {
		f.wipes.Publish(gateway.WipeEvent{Reason: reason, Op: op})
	}
}
