package engine

import "github.com/roach88/tangram/internal/ir"

// Cycler walks a source chain and fires the slot at its position into out.
//
// Three range chains decide how an incoming event moves the position:
// firstIf resets it to 0, nextIf advances it, and loopIf lets an advance past
// the end wrap around. A range chain of length 0 matches nothing, length 1
// matches one value exactly, and length 2 or more matches the inclusive range
// [r[0], r[1]] where a rest bound is open.
type Cycler struct {
	ctx      *Context
	source   Chain
	out      Pulse
	firstIf  Chain
	nextIf   Chain
	loopIf   Chain
	position int
}

// CyclerOption configures a Cycler.
type CyclerOption func(*cyclerConfig)

type cyclerConfig struct {
	firstIf any
	nextIf  any
	loopIf  any
}

// FirstIf sets the range of events that reset the position to 0.
func FirstIf(spec any) CyclerOption {
	return func(c *cyclerConfig) {
		c.firstIf = spec
	}
}

// NextIf sets the range of events that advance the position.
func NextIf(spec any) CyclerOption {
	return func(c *cyclerConfig) {
		c.nextIf = spec
	}
}

// LoopIf sets the range of events that wrap an advance past the end.
func LoopIf(spec any) CyclerOption {
	return func(c *cyclerConfig) {
		c.loopIf = spec
	}
}

// NewCycler creates a Cycler over source firing into out.
// Range options default to an empty chain, which matches nothing.
func NewCycler(ctx *Context, source any, out Pulse, opts ...CyclerOption) (*Cycler, error) {
	cfg := cyclerConfig{firstIf: ir.Seq{}, nextIf: ir.Seq{}, loopIf: ir.Seq{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	chains, err := wrapAll(ctx, []any{source, cfg.firstIf, cfg.nextIf, cfg.loopIf})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Nop
	}
	return &Cycler{
		ctx:     ctx,
		source:  chains[0],
		out:     out,
		firstIf: chains[1],
		nextIf:  chains[2],
		loopIf:  chains[3],
	}, nil
}

// Position returns the current position. It may be past the end of the source
// after a non-looping advance.
func (c *Cycler) Position() int {
	return c.position
}

// Fire reacts to v against the source's current length.
func (c *Cycler) Fire(v int) {
	c.ctx.fired("cycler")

	length := c.source.Len()
	if length == 0 {
		return
	}

	switch {
	case inRange(v, c.firstIf):
		c.position = 0
		c.emit()
	case inRange(v, c.nextIf):
		c.position++
		if c.position < length {
			c.emit()
			return
		}
		if inRange(v, c.loopIf) {
			c.position %= length
			c.emit()
		}
	}
}

func (c *Cycler) emit() {
	if n, ok := c.source.At(c.position).Get(); ok {
		c.out.Fire(n)
	}
}

// inRange reports whether v matches the range chain r.
func inRange(v int, r Chain) bool {
	switch r.Len() {
	case 0:
		return false
	case 1:
		want, ok := r.At(0).Get()
		return ok && v == want
	default:
		if lo, ok := r.At(0).Get(); ok && v < lo {
			return false
		}
		if hi, ok := r.At(1).Get(); ok && v > hi {
			return false
		}
		return true
	}
}
