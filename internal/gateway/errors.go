package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind classifies a gateway failure.
type Kind string

const (
	// KindNetwork means no response reached us: transport failure or deadline.
	KindNetwork Kind = "network"
	// KindAuth means the backend rejected the credential, or there was none to send.
	KindAuth Kind = "auth"
	// KindServer is any other failure response, including undecodable bodies.
	KindServer Kind = "server"
	// KindValidation means the call was refused locally before any request.
	KindValidation Kind = "validation"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrServer     = &Error{Kind: KindServer}
	ErrValidation = &Error{Kind: KindValidation}
)

// Error is the single error type returned by Client.
type Error struct {
	Kind   Kind
	Op     string // endpoint name, e.g. "chat.message"
	Status int    // HTTP status, 0 when no response was received
	Detail string // server- or client-provided explanation
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Status != 0 || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of a gateway error, or "" for any other error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func validationError(op, detail string) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail}
}

// classifyResponse turns a non-2xx response into an *Error, or returns nil.
// The body is consumed on failure.
func classifyResponse(op string, resp *http.Response) *Error {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: err}
	}

	kind := KindServer
	if gerr.Code == http.StatusUnauthorized {
		kind = KindAuth
	}

	return &Error{
		Kind:   kind,
		Op:     op,
		Status: gerr.Code,
		Detail: responseDetail(gerr),
		Err:    err,
	}
}

// responseDetail extracts a human readable message. The backend reports
// errors as {"detail": "..."}; anything else falls back to googleapi's parse
// and then to the status text.
func responseDetail(gerr *googleapi.Error) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal([]byte(gerr.Body), &body) == nil {
		switch d := body.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
	}
	if gerr.Message != "" {
		return gerr.Message
	}
	return http.StatusText(gerr.Code)
}
