package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
)

type fakeBackend struct {
	greeting func(ctx context.Context) (*gateway.Greeting, error)
	exchange func(ctx context.Context, text string) (*gateway.ChatResponse, error)

	mu        sync.Mutex
	greetings int
	texts     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		greeting: func(context.Context) (*gateway.Greeting, error) {
			return &gateway.Greeting{Text: "Good morning, Jane!", DisplayName: "Jane"}, nil
		},
		exchange: func(_ context.Context, text string) (*gateway.ChatResponse, error) {
			return &gateway.ChatResponse{Text: "echo: " + text, ActionType: gateway.ActionHelp}, nil
		},
	}
}

func (f *fakeBackend) FetchGreeting(ctx context.Context) (*gateway.Greeting, error) {
	f.mu.Lock()
	f.greetings++
	f.mu.Unlock()
	return f.greeting(ctx)
}

func (f *fakeBackend) Exchange(ctx context.Context, text string) (*gateway.ChatResponse, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return f.exchange(ctx, text)
}

func (f *fakeBackend) exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type gate bool

func (g gate) Authenticated() bool { return bool(g) }

func newStore(b Backend, opts ...func(*Options)) *Store {
	o := Options{Logger: logging.Discard()}
	for _, fn := range opts {
		fn(&o)
	}
	return New(b, o)
}

func emails(n int) []gateway.EmailSummary {
	out := make([]gateway.EmailSummary, n)
	for i := range out {
		out[i] = gateway.EmailSummary{
			Email:   gateway.Email{ID: fmt.Sprintf("e%d", i+1), Subject: fmt.Sprintf("Subject %d", i+1)},
			Summary: fmt.Sprintf("summary %d", i+1),
		}
	}
	return out
}

func hasPlaceholder(msgs []Message) bool {
	for _, m := range msgs {
		if m.Placeholder {
			return true
		}
	}
	return false
}

func TestInitialize(t *testing.T) {
	t.Run("seeds backend greeting once", func(t *testing.T) {
		b := newFakeBackend()
		s := newStore(b)

		s.Initialize(context.Background())
		s.Initialize(context.Background())

		msgs := s.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, RoleAssistant, msgs[0].Role)
		assert.Equal(t, "Good morning, Jane!", msgs[0].Content)
		assert.False(t, msgs[0].Placeholder)
		assert.Equal(t, 1, b.greetings)
	})

	t.Run("falls back when the greeting fails", func(t *testing.T) {
		b := newFakeBackend()
		b.greeting = func(context.Context) (*gateway.Greeting, error) {
			return nil, &gateway.Error{Kind: gateway.KindServer, Status: 500}
		}
		s := newStore(b)

		s.Initialize(context.Background())

		msgs := s.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, FallbackGreeting, msgs[0].Content)
		assert.Empty(t, s.Error(), "greeting failures are not surfaced")
	})

	t.Run("falls back on a blank greeting", func(t *testing.T) {
		b := newFakeBackend()
		b.greeting = func(context.Context) (*gateway.Greeting, error) {
			return &gateway.Greeting{Text: "  "}, nil
		}
		s := newStore(b)

		s.Initialize(context.Background())
		assert.Equal(t, FallbackGreeting, s.Messages()[0].Content)
	})
}

func TestSendTurnWithEmails(t *testing.T) {
	b := newFakeBackend()
	want := emails(5)
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		return &gateway.ChatResponse{Text: "Here are your emails", ActionType: gateway.ActionReadEmails, Emails: want}, nil
	}
	s := newStore(b)
	s.Initialize(context.Background())
	before := len(s.Messages())

	var snaps []Snapshot
	s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	require.NoError(t, s.SendTurn(context.Background(), "Show me my last 5 emails"))

	// user + placeholder, then placeholder replaced by the final reply
	require.Len(t, snaps, 2)
	pending := snaps[0]
	assert.True(t, pending.Busy)
	require.Len(t, pending.Messages, before+2)
	assert.Equal(t, RoleUser, pending.Messages[before].Role)
	assert.Equal(t, "Show me my last 5 emails", pending.Messages[before].Content)
	last := pending.Messages[len(pending.Messages)-1]
	assert.True(t, last.Placeholder)
	assert.Empty(t, last.Content)
	assert.NotEmpty(t, last.ExchangeID)

	msgs := s.Messages()
	require.Len(t, msgs, before+2)
	assert.False(t, hasPlaceholder(msgs))

	final := msgs[len(msgs)-1]
	assert.Equal(t, RoleAssistant, final.Role)
	assert.Equal(t, "Here are your emails", final.Content)
	assert.Equal(t, gateway.ActionReadEmails, final.ActionType)
	assert.Equal(t, want, final.Emails)
	assert.Equal(t, last.ID, final.ID)
	assert.Equal(t, last.ExchangeID, final.ExchangeID)

	assert.Equal(t, want, s.LatestEmails())
	assert.False(t, s.Busy())
	assert.Empty(t, s.Error())
}

func TestSendTurnAttachmentsPassThrough(t *testing.T) {
	b := newFakeBackend()
	resp := &gateway.ChatResponse{
		Text:       "Here's a suggested reply",
		ActionType: gateway.ActionGenerateResponse,
		ActionData: map[string]any{"email_id": "e1"},
		SuggestedReplies: []gateway.ReplyDraft{
			{EmailID: "e1", SuggestedReply: "Sounds good!", Tone: "professional"},
		},
	}
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) { return resp, nil }
	s := newStore(b)

	require.NoError(t, s.SendTurn(context.Background(), "reply to the first one"))

	final := s.Messages()[1]
	assert.Equal(t, resp.SuggestedReplies, final.SuggestedReplies)
	assert.Equal(t, resp.ActionData, final.ActionData)
	assert.Nil(t, final.Emails)
	assert.Nil(t, s.LatestEmails(), "a reply without emails leaves the projection alone")
}

func TestSendTurnRejectsBlankText(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n"} {
		b := newFakeBackend()
		s := newStore(b)
		s.Initialize(context.Background())
		before := s.Snapshot()

		err := s.SendTurn(context.Background(), text)

		assert.True(t, errors.Is(err, gateway.ErrValidation))
		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, 0, b.exchanges())
	}
}

func TestSendTurnTrimsText(t *testing.T) {
	b := newFakeBackend()
	s := newStore(b)

	require.NoError(t, s.SendTurn(context.Background(), "  hello  "))

	assert.Equal(t, "hello", s.Messages()[0].Content)
	assert.Equal(t, []string{"hello"}, b.texts)
}

func TestSendTurnFailure(t *testing.T) {
	b := newFakeBackend()
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		return nil, &gateway.Error{Kind: gateway.KindServer, Op: gateway.OpExchange, Status: 500, Detail: "boom"}
	}
	s := newStore(b)
	s.Initialize(context.Background())

	require.NoError(t, s.SendTurn(context.Background(), "hello"))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.False(t, hasPlaceholder(msgs))

	final := msgs[2]
	assert.Equal(t, ApologyText, final.Content)
	assert.Equal(t, gateway.ActionError, final.ActionType)
	assert.Nil(t, final.Emails)
	assert.Contains(t, s.Error(), "boom")
	assert.False(t, s.Busy())
}

func TestSendTurnWhileBusy(t *testing.T) {
	b := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	b.exchange = func(_ context.Context, text string) (*gateway.ChatResponse, error) {
		close(entered)
		<-release
		return &gateway.ChatResponse{Text: "done"}, nil
	}
	s := newStore(b)

	done := make(chan error)
	go func() { done <- s.SendTurn(context.Background(), "first") }()
	<-entered

	during := s.Snapshot()
	assert.True(t, during.Busy)

	err := s.SendTurn(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, during, s.Snapshot(), "a rejected turn must not touch the log")

	close(release)
	require.NoError(t, <-done)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "done", msgs[1].Content)
	assert.Equal(t, 1, b.exchanges())
}

func TestResetDropsReplyInFlight(t *testing.T) {
	b := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		close(entered)
		<-release
		return &gateway.ChatResponse{Text: "late", Emails: emails(2)}, nil
	}
	s := newStore(b)
	s.Initialize(context.Background())

	done := make(chan error)
	go func() { done <- s.SendTurn(context.Background(), "show emails") }()
	<-entered

	s.Reset(context.Background())
	assert.False(t, s.Busy())

	close(release)
	require.NoError(t, <-done)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Good morning, Jane!", msgs[0].Content)
	assert.Nil(t, s.LatestEmails())
	assert.False(t, s.Busy())
}

func TestResetWithFailingGreeting(t *testing.T) {
	b := newFakeBackend()
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		return &gateway.ChatResponse{Text: "ok", Emails: emails(1)}, nil
	}
	s := newStore(b)
	s.Initialize(context.Background())
	require.NoError(t, s.SendTurn(context.Background(), "hi"))
	require.NotNil(t, s.LatestEmails())

	b.greeting = func(context.Context) (*gateway.Greeting, error) {
		return nil, &gateway.Error{Kind: gateway.KindNetwork}
	}
	s.Reset(context.Background())

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, FallbackGreeting, msgs[0].Content)
	assert.Nil(t, s.LatestEmails())
}

func TestResetKeepsGreetingFirst(t *testing.T) {
	b := newFakeBackend()
	s := newStore(b)
	s.Initialize(context.Background())
	require.NoError(t, s.SendTurn(context.Background(), "hi"))

	entered := make(chan struct{})
	release := make(chan struct{})
	b.greeting = func(context.Context) (*gateway.Greeting, error) {
		close(entered)
		<-release
		return &gateway.Greeting{Text: "Welcome back, Jane!"}, nil
	}

	done := make(chan struct{})
	go func() {
		s.Reset(context.Background())
		close(done)
	}()
	<-entered

	require.NoError(t, s.SendTurn(context.Background(), "show emails"))
	close(release)
	<-done

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Welcome back, Jane!", msgs[0].Content)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "show emails", msgs[1].Content)
	assert.Equal(t, "echo: show emails", msgs[2].Content)
}

func TestClearError(t *testing.T) {
	b := newFakeBackend()
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		return nil, &gateway.Error{Kind: gateway.KindNetwork, Detail: "no response within 60s"}
	}
	s := newStore(b)
	require.NoError(t, s.SendTurn(context.Background(), "hi"))
	require.NotEmpty(t, s.Error())
	msgs := s.Messages()

	s.ClearError()

	assert.Empty(t, s.Error())
	assert.Equal(t, msgs, s.Messages())
}

func TestSendTurnRequiresAuthentication(t *testing.T) {
	b := newFakeBackend()
	s := newStore(b, func(o *Options) { o.Gate = gate(false) })

	err := s.SendTurn(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, s.Messages())
	assert.Equal(t, 0, b.exchanges())
}

func TestLatestEmailsKeepsLastNonNilList(t *testing.T) {
	b := newFakeBackend()
	replies := []*gateway.ChatResponse{
		{Text: "two", Emails: emails(2)},
		{Text: "none"},
		{Text: "empty", Emails: []gateway.EmailSummary{}},
	}
	var i int
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		r := replies[i]
		i++
		return r, nil
	}
	s := newStore(b)

	require.NoError(t, s.SendTurn(context.Background(), "a"))
	assert.Len(t, s.LatestEmails(), 2)

	require.NoError(t, s.SendTurn(context.Background(), "b"))
	assert.Len(t, s.LatestEmails(), 2)

	require.NoError(t, s.SendTurn(context.Background(), "c"))
	assert.NotNil(t, s.LatestEmails())
	assert.Empty(t, s.LatestEmails())
}

func TestMessageIDsAreUnique(t *testing.T) {
	b := newFakeBackend()
	s := newStore(b)
	s.Initialize(context.Background())
	for i := range 3 {
		require.NoError(t, s.SendTurn(context.Background(), fmt.Sprintf("turn %d", i)))
	}
	s.Reset(context.Background())
	require.NoError(t, s.SendTurn(context.Background(), "after reset"))

	seen := map[string]bool{}
	for _, m := range s.Messages() {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
	// IDs keep counting across a reset.
	assert.Equal(t, "msg-8", s.Messages()[0].ID)
}

func TestMessagesAreCopies(t *testing.T) {
	b := newFakeBackend()
	b.exchange = func(context.Context, string) (*gateway.ChatResponse, error) {
		return &gateway.ChatResponse{Text: "ok", Emails: emails(1)}, nil
	}
	s := newStore(b)
	require.NoError(t, s.SendTurn(context.Background(), "hi"))

	msgs := s.Messages()
	msgs[1].Emails[0].Summary = "changed"
	msgs[1].Content = "changed"

	assert.Equal(t, "summary 1", s.Messages()[1].Emails[0].Summary)
	assert.Equal(t, "ok", s.Messages()[1].Content)
}
