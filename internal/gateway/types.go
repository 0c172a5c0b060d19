package gateway

// UserProfile is the signed-in user as reported by the backend.
type UserProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// LoginHandshake starts the redirect-based login.
type LoginHandshake struct {
	RedirectURL string `json:"authorization_url"`
	State       string `json:"state"`
}

// Verification is the outcome of VerifyCredential.
type Verification struct {
	Valid            bool   `json:"valid"`
	UserID           string `json:"user_id,omitempty"`
	Email            string `json:"email,omitempty"`
	HasMailboxAccess bool   `json:"has_gmail_access,omitempty"`
}

// Greeting is the welcome text for a new conversation.
type Greeting struct {
	Text        string `json:"message"`
	DisplayName string `json:"user_name"`
}

// Email is a mailbox item as the backend renders it.
type Email struct {
	ID          string   `json:"id"`
	ThreadID    string   `json:"thread_id"`
	Sender      string   `json:"sender"`
	SenderEmail string   `json:"sender_email"`
	Subject     string   `json:"subject"`
	Snippet     string   `json:"snippet"`
	Body        string   `json:"body"`
	Date        string   `json:"date"`
	IsUnread    bool     `json:"is_unread"`
	Labels      []string `json:"labels"`
}

// EmailSummary is an Email with the backend's summary attached.
type EmailSummary struct {
	Email    Email  `json:"email"`
	Summary  string `json:"summary"`
	Category string `json:"category,omitempty"`
}

// ReplyDraft is a suggested reply to one Email.
type ReplyDraft struct {
	EmailID         string `json:"email_id"`
	OriginalSubject string `json:"original_subject"`
	OriginalSender  string `json:"original_sender"`
	SuggestedReply  string `json:"suggested_reply"`
	Tone            string `json:"tone"`
}

// ChatResponse is the structured reply to one Exchange.
//
// Emails and SuggestedReplies are nil when the backend omitted them and
// non-nil (possibly empty) when it sent a list.
type ChatResponse struct {
	Text             string         `json:"message"`
	ActionType       string         `json:"action_type,omitempty"`
	ActionData       map[string]any `json:"action_data,omitempty"`
	Emails           []EmailSummary `json:"emails,omitempty"`
	SuggestedReplies []ReplyDraft   `json:"suggested_replies,omitempty"`
}

// SendReplyRequest is the body of SendReply.
type SendReplyRequest struct {
	EmailID      string `json:"email_id"`
	ReplyContent string `json:"reply_content"`
	ThreadID     string `json:"thread_id,omitempty"`
}

// ActionResult is the outcome of a mailbox mutation.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Action  string `json:"action"`
	EmailID string `json:"email_id,omitempty"`
}

// EmailCategory groups summaries under one label.
type EmailCategory struct {
	Name   string         `json:"name"`
	Emails []EmailSummary `json:"emails"`
	Count  int            `json:"count"`
}

// DailyDigest is the backend's overview of recent mail.
type DailyDigest struct {
	Date         string          `json:"date"`
	TotalEmails  int             `json:"total_emails"`
	Summary      string          `json:"summary"`
	Categories   []EmailCategory `json:"categories"`
	ActionItems  []string        `json:"action_items"`
	UrgentEmails []EmailSummary  `json:"urgent_emails"`
}

// Action tags the backend attaches to chat responses. They are passed through
// untouched; ActionError is also used locally for failed exchanges.
const (
	ActionReadEmails       = "read_emails"
	ActionGenerateResponse = "generate_response"
	ActionSendEmail        = "send_email"
	ActionConfirmDelete    = "confirm_delete"
	ActionDeleteEmail      = "delete_email"
	ActionCancelled        = "cancelled"
	ActionCategorize       = "categorize"
	ActionDailyDigest      = "daily_digest"
	ActionHelp             = "help"
	ActionUnknown          = "unknown"
	ActionReauthRequired   = "reauth_required"
	ActionError            = "error"
)

// KnownActions lists every action tag above.
var KnownActions = []string{
	ActionReadEmails, ActionGenerateResponse, ActionSendEmail, ActionConfirmDelete,
	ActionDeleteEmail, ActionCancelled, ActionCategorize, ActionDailyDigest,
	ActionHelp, ActionUnknown, ActionReauthRequired, ActionError,
}
