package harness

import (
	"github.com/roach88/ecompat/internal/entry"
)

// TraceEvent records the outcome of one entry in one run.
type TraceEvent struct {
	Run        int     `json:"run"`
	Scheme     string  `json:"scheme"`
	EntryID    string  `json:"entry_id"`
	Accepted   bool    `json:"accepted"`
	Code       string  `json:"code,omitempty"`
	Correction float64 `json:"correction"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists every entry outcome, run by run, in input order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Entries are the entries that survived every run, in input order.
	Entries []*entry.Entry `json:"-"`

	// Rejections maps a rejected entry ID to the error that dropped it.
	Rejections map[string]error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
		Rejections: map[string]error{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Entry returns the surviving entry with the given ID, or nil.
func (r *Result) Entry(id string) *entry.Entry {
	for _, e := range r.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}
