package engine

// Pulse is a reactive sink for integer events.
// Fire runs synchronously; no caching contract applies.
type Pulse interface {
	Fire(v int)
}

// PulseFunc adapts a function to the Pulse interface.
type PulseFunc func(v int)

// Fire calls f(v).
func (f PulseFunc) Fire(v int) {
	f(v)
}

// Nop is a pulse that ignores every event.
var Nop Pulse = PulseFunc(func(int) {})

// Sprayer fans an event out to its targets in construction order.
type Sprayer struct {
	ctx     *Context
	targets []Pulse
}

// NewSprayer creates a Sprayer firing into targets, in order.
func NewSprayer(ctx *Context, targets ...Pulse) *Sprayer {
	return &Sprayer{ctx: ctx, targets: targets}
}

// Fire delivers v to every target before returning.
func (s *Sprayer) Fire(v int) {
	s.ctx.fired("sprayer")
	for _, p := range s.targets {
		p.Fire(v)
	}
}

// ForwardPulse is a placeholder pulse bound to its target after construction.
// An unbound ForwardPulse behaves like Nop.
type ForwardPulse struct {
	name   string
	target Pulse
}

// NewForwardPulse creates an unbound ForwardPulse for the named pulse.
func NewForwardPulse(name string) *ForwardPulse {
	return &ForwardPulse{name: name}
}

// Bind sets the pulse events are forwarded to.
func (f *ForwardPulse) Bind(target Pulse) {
	f.target = target
}

// Name returns the name the ForwardPulse stands for.
func (f *ForwardPulse) Name() string {
	return f.name
}

// Fire forwards v to the bound target.
func (f *ForwardPulse) Fire(v int) {
	if f.target != nil {
		f.target.Fire(v)
	}
}
