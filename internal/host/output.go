package host

import (
	"log/slog"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
)

// Holder is a pulse that remembers the last value fired into it.
type Holder struct {
	value int
}

// NewHolder creates a Holder starting at initial.
func NewHolder(initial int) *Holder {
	return &Holder{value: initial}
}

// Fire stores v.
func (h *Holder) Fire(v int) {
	h.value = v
}

// Get returns the held value.
func (h *Holder) Get() int {
	return h.value
}

// Outputter bundles the note holders and the emit pulse of one network.
//
// Pulses fire pitch, velocity and duration into the holders; firing Emit
// sends one ir.Note with the held values to the sink. Notes and control
// changes emitted during the same tick are numbered by Ordinal.
type Outputter struct {
	ctx    *engine.Context
	sink   Sink
	logger *slog.Logger

	Pitch    *Holder
	Velocity *Holder
	Duration *Holder
	Emit     *Emitter

	stamp   int64
	ordinal int
	failed  int
}

// Option configures an Outputter.
type Option func(*Outputter)

// WithLogger sets the logger used to report sink failures.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Outputter) {
		o.logger = l
	}
}

// NewOutputter creates an Outputter whose holders start at the values in spec.
// A nil sink discards output.
func NewOutputter(ctx *engine.Context, sink Sink, spec ir.OutputSpec, opts ...Option) *Outputter {
	if sink == nil {
		sink = Discard
	}
	o := &Outputter{
		ctx:      ctx,
		sink:     sink,
		logger:   slog.Default(),
		Pitch:    NewHolder(spec.Pitch),
		Velocity: NewHolder(spec.Velocity),
		Duration: NewHolder(spec.Duration),
		stamp:    -1,
	}
	o.Emit = &Emitter{out: o}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Target returns the built-in pulse with the given name:
// "pitch", "velocity", "duration", "emit" or "nop".
func (o *Outputter) Target(name string) (engine.Pulse, bool) {
	switch name {
	case ir.TargetPitch:
		return o.Pitch, true
	case ir.TargetVelocity:
		return o.Velocity, true
	case ir.TargetDuration:
		return o.Duration, true
	case ir.TargetEmit:
		return o.Emit, true
	case ir.TargetNop:
		return engine.Nop, true
	default:
		return nil, false
	}
}

// Control returns a pulse sending control change number to the sink.
func (o *Outputter) Control(number int) *ControlOutput {
	return &ControlOutput{out: o, number: number}
}

// Failed returns how many sink calls have failed.
func (o *Outputter) Failed() int {
	return o.failed
}

// next returns the current stamp and the next ordinal within it.
func (o *Outputter) next() (int64, int) {
	stamp := o.ctx.Stamp()
	if stamp != o.stamp {
		o.stamp = stamp
		o.ordinal = 0
	}
	ordinal := o.ordinal
	o.ordinal++
	return stamp, ordinal
}

// Emitter is the pulse that sends the held note. The fired value is ignored.
type Emitter struct {
	out *Outputter
}

// Fire sends one note with the held pitch, velocity and duration.
// Sink failures are logged and counted; the network keeps running.
func (e *Emitter) Fire(int) {
	o := e.out
	stamp, ordinal := o.next()
	n := ir.Note{
		Tick:     stamp,
		Ordinal:  ordinal,
		Pitch:    o.Pitch.Get(),
		Velocity: o.Velocity.Get(),
		Duration: o.Duration.Get(),
	}
	if err := o.sink.Note(n); err != nil {
		o.failed++
		o.logger.Error("note output failed",
			"tick", n.Tick,
			"pitch", n.Pitch,
			"error", err,
		)
	}
}

// ControlOutput is a pulse sending each fired value as a control change.
type ControlOutput struct {
	out    *Outputter
	number int
}

// Number returns the control change number.
func (c *ControlOutput) Number() int {
	return c.number
}

// Fire sends control change (number, v).
func (c *ControlOutput) Fire(v int) {
	o := c.out
	stamp, ordinal := o.next()
	cc := ir.Control{Tick: stamp, Ordinal: ordinal, Number: c.number, Value: v}
	if err := o.sink.Control(cc); err != nil {
		o.failed++
		o.logger.Error("control output failed",
			"tick", cc.Tick,
			"number", cc.Number,
			"error", err,
		)
	}
}
