package harness

import "github.com/roach88/tangram/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// SessionID is the session the performance was recorded under.
	SessionID string `json:"session_id"`

	// Seed is the seed the patch was played with.
	Seed int64 `json:"seed"`

	// Events are the recorded triggers in tick order, with any failure.
	Events []ir.Event `json:"events"`

	// Notes and Controls are the recorded output in (tick, ordinal) order.
	Notes    []ir.Note    `json:"notes"`
	Controls []ir.Control `json:"controls"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Events:   []ir.Event{},
		Notes:    []ir.Note{},
		Controls: []ir.Control{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Pitches returns the pitch of every recorded note.
func (r *Result) Pitches() []int {
	out := make([]int, len(r.Notes))
	for i, n := range r.Notes {
		out[i] = n.Pitch
	}
	return out
}

// Velocities returns the velocity of every recorded note.
func (r *Result) Velocities() []int {
	out := make([]int, len(r.Notes))
	for i, n := range r.Notes {
		out[i] = n.Velocity
	}
	return out
}

// FailedEvents returns the recorded events whose evaluation failed.
func (r *Result) FailedEvents() []ir.Event {
	var out []ir.Event
	for _, e := range r.Events {
		if e.Error != "" {
			out = append(out, e)
		}
	}
	return out
}
