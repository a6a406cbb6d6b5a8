package host

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/pitch"
)

// Sink receives everything a network emits.
type Sink interface {
	Note(n ir.Note) error
	Control(c ir.Control) error
}

// Discard is a Sink that drops all output.
var Discard Sink = discard{}

type discard struct{}

func (discard) Note(ir.Note) error       { return nil }
func (discard) Control(ir.Control) error { return nil }

// Recorder keeps emitted notes and controls in memory, in emission order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu       sync.Mutex
	notes    []ir.Note
	controls []ir.Control
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Note implements Sink.
func (r *Recorder) Note(n ir.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

// Control implements Sink.
func (r *Recorder) Control(c ir.Control) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append(r.controls, c)
	return nil
}

// Notes returns a copy of the recorded notes.
func (r *Recorder) Notes() []ir.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Note, len(r.notes))
	copy(out, r.notes)
	return out
}

// Controls returns a copy of the recorded control changes.
func (r *Recorder) Controls() []ir.Control {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Control, len(r.controls))
	copy(out, r.controls)
	return out
}

// Pitches returns the pitch of every recorded note.
func (r *Recorder) Pitches() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Pitch
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
	r.controls = nil
}

// LogSink writes every note and control change to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Note implements Sink.
func (s *LogSink) Note(n ir.Note) error {
	s.logger.Info("note",
		"tick", n.Tick,
		"ordinal", n.Ordinal,
		"pitch", n.Pitch,
		"name", pitch.Name(n.Pitch),
		"velocity", n.Velocity,
		"duration", n.Duration,
	)
	return nil
}

// Control implements Sink.
func (s *LogSink) Control(c ir.Control) error {
	s.logger.Info("control",
		"tick", c.Tick,
		"ordinal", c.Ordinal,
		"number", c.Number,
		"value", c.Value,
	)
	return nil
}

// Multi fans output out to several sinks, in order.
// Every sink is called even if an earlier one fails; the errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Note(n ir.Note) error {
	var errs []error
	for _, s := range m {
		if err := s.Note(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Control(c ir.Control) error {
	var errs []error
	for _, s := range m {
		if err := s.Control(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
