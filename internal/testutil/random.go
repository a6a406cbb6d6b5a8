package testutil

import "sync"

// ScriptedRandom is a random source that replays a fixed list of values.
//
// IntN(n) returns the next scripted value modulo n and cycles back to the
// start when the script runs out. Every requested limit is recorded so tests
// can assert how often, and with which bound, a chain drew.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedRandom struct {
	mu     sync.Mutex
	values []int
	next   int
	limits []int
}

// NewScriptedRandom creates a source replaying values in order.
// With no values every draw returns 0.
func NewScriptedRandom(values ...int) *ScriptedRandom {
	return &ScriptedRandom{values: values}
}

// IntN returns the next scripted value reduced into [0, n).
//
// Implements engine.RandomSource.
func (r *ScriptedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits = append(r.limits, n)
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.next%len(r.values)]
	r.next++
	return ((v % n) + n) % n
}

// Draws returns how many values have been drawn.
func (r *ScriptedRandom) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limits)
}

// Limits returns the limit passed to each draw, in order.
func (r *ScriptedRandom) Limits() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.limits))
	copy(out, r.limits)
	return out
}

// Reset rewinds the script and forgets recorded draws.
func (r *ScriptedRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.limits = nil
}
