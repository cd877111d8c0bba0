package harness

import "github.com/sksthrs/mekiku/internal/transcript"

// TraceEvent records what one step did.
type TraceEvent struct {
	Step   int                   `json:"step"`
	Type   string                `json:"type"` // "receive" or "local"
	Sender string                `json:"sender"`
	Kind   string                `json:"kind,omitempty"`
	Flags  transcript.BatchFlags `json:"flags"`
	Snap   bool                  `json:"snap,omitempty"`
	Lines  []string              `json:"lines,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Trace has one event per step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Transcript []string `json:"transcript"`
	Visible    []string `json:"visible"`
	Len        int      `json:"len"`
	Pending    int      `json:"pending"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the event of one step.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
