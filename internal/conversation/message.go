package conversation

import (
	"maps"
	"slices"
	"time"

	"github.com/teemow/inboxchat/internal/gateway"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the conversation log.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Placeholder bool      `json:"placeholder,omitempty"`

	// ExchangeID links the user message, its placeholder and the final reply
	// of one turn. Empty for greetings.
	ExchangeID string `json:"exchange_id,omitempty"`

	// Attachments from the backend, passed through unmodified.
	Emails           []gateway.EmailSummary `json:"emails,omitempty"`
	SuggestedReplies []gateway.ReplyDraft   `json:"suggested_replies,omitempty"`
	ActionType       string                 `json:"action_type,omitempty"`
	ActionData       map[string]any         `json:"action_data,omitempty"`
}

func (m Message) clone() Message {
	m.Emails = slices.Clone(m.Emails)
	m.SuggestedReplies = slices.Clone(m.SuggestedReplies)
	m.ActionData = maps.Clone(m.ActionData)
	return m
}

// Snapshot is a copy of the store's observable state.
type Snapshot struct {
	Messages []Message
	Busy     bool

	// LatestEmails is the most recent list of email items any reply carried.
	LatestEmails []gateway.EmailSummary

	Error string
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.clone()
	}
	return out
}
