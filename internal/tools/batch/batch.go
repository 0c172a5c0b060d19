package batch

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Outcome is the result of the action for one item.
type Outcome struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report aggregates the outcomes of one batch.
type Report struct {
	Total    int       `json:"total"`
	Done     int       `json:"done"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped,omitempty"`
	Outcomes []Outcome `json:"outcomes"`
}

// ParseIDs accepts either a single ID string or an array of ID strings.
// Duplicates are removed, keeping the first occurrence.
func ParseIDs(param any, name string) ([]string, error) {
	var raw []string

	switch v := param.(type) {
	case nil:
		return nil, fmt.Errorf("%s is required", name)
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", name)
		}
		raw = []string{v}
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", name)
		}
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", name, i)
			}
			if s == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", name, i)
			}
			raw = append(raw, s)
		}
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", name)
		}
		for i, s := range v {
			if s == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", name, i)
			}
		}
		raw = v
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", name)
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Run applies fn to each ID in order. Once ctx is done the remaining IDs are
// reported as skipped.
func Run(ctx context.Context, ids []string, fn func(ctx context.Context, id string) (string, error)) Report {
	outcomes := make([]Outcome, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{ID: id, Status: StatusSkipped, Error: err.Error()})
			continue
		}
		msg, err := fn(ctx, id)
		if err != nil {
			outcomes = append(outcomes, Outcome{ID: id, Status: StatusFailed, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{ID: id, Status: StatusDone, Message: msg})
	}

	return Summarize(outcomes)
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Report {
	r := Report{Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case StatusDone:
			r.Done++
		case StatusSkipped:
			r.Skipped++
		default:
			r.Failed++
		}
	}
	return r
}

// String renders the report as indented JSON.
func (r Report) String() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}
