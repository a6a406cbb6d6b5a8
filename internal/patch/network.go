package patch

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
)

// Network is a patch instantiated into live chains and pulses.
type Network struct {
	patch     *ir.Patch
	ctx       *engine.Context
	out       *host.Outputter
	chains    map[string]engine.Chain
	pulses    map[string]engine.Pulse
	keyboards []*host.Keyboard
	root      engine.Pulse
}

type buildConfig struct {
	seed       *int64
	ctxOpts    []engine.ContextOption
	outputOpts []host.Option
	logger     *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithSeed overrides the patch's seed.
func WithSeed(seed int64) BuildOption {
	return func(c *buildConfig) {
		c.seed = &seed
	}
}

// WithContextOptions passes extra options to the network's engine.Context,
// e.g. engine.WithClock to continue counting from a previous network.
func WithContextOptions(opts ...engine.ContextOption) BuildOption {
	return func(c *buildConfig) {
		c.ctxOpts = append(c.ctxOpts, opts...)
	}
}

// WithLogger sets the logger the network's output reports sink failures to.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = l
		c.outputOpts = append(c.outputOpts, host.WithLogger(l))
	}
}

// Build validates p and instantiates it, sending output to sink.
//
// Chains are built in dependency order; pulses may refer to each other in
// any order, including loops. Returns ValidationErrors if p is invalid.
func Build(p *ir.Patch, sink host.Sink, opts ...BuildOption) (*Network, error) {
	if errs := Validate(p); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	cfg := buildConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	seed := p.Seed
	if cfg.seed != nil {
		seed = *cfg.seed
	}

	ctx := engine.NewContext(append([]engine.ContextOption{engine.WithSeed(seed)}, cfg.ctxOpts...)...)
	n := &Network{
		patch:  p,
		ctx:    ctx,
		out:    host.NewOutputter(ctx, sink, p.Output, cfg.outputOpts...),
		chains: make(map[string]engine.Chain, len(p.Chains)),
		pulses: make(map[string]engine.Pulse, len(p.Pulses)),
	}

	specs := make(map[string]ir.ChainSpec, len(p.Chains))
	for _, c := range p.Chains {
		specs[c.Name] = c
	}
	for _, c := range p.Chains {
		if _, err := n.buildChain(c.Name, specs); err != nil {
			return nil, err
		}
	}

	forwards := make(map[string]*engine.ForwardPulse, len(p.Pulses))
	for _, ps := range p.Pulses {
		forwards[ps.Name] = engine.NewForwardPulse(ps.Name)
	}
	target := func(name string) engine.Pulse {
		if f, ok := forwards[name]; ok {
			return f
		}
		pulse, _ := n.out.Target(name)
		return pulse
	}

	for _, ps := range p.Pulses {
		pulse, err := n.buildPulse(ps, target)
		if err != nil {
			return nil, fmt.Errorf("pulse %s: %w", ps.Name, err)
		}
		forwards[ps.Name].Bind(pulse)
		n.pulses[ps.Name] = pulse
	}

	n.root = target(p.Root)
	cfg.logger.Debug("network built",
		"patch", p.Name,
		"seed", seed,
		"chains", len(n.chains),
		"pulses", len(n.pulses),
	)
	return n, nil
}

// buildChain builds the named chain after the chains it references.
// Validate has already rejected reference cycles.
func (n *Network) buildChain(name string, specs map[string]ir.ChainSpec) (engine.Chain, error) {
	if c, ok := n.chains[name]; ok {
		return c, nil
	}

	spec := specs[name]
	args := make([]any, len(spec.Args))
	for i, a := range spec.Args {
		v, err := n.resolve(a, specs)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	var (
		c   engine.Chain
		err error
	)
	switch spec.Kind {
	case ir.ChainConst:
		c, err = engine.Wrap(n.ctx, args[0])
	case ir.ChainAssembler:
		c, err = engine.NewAssembler(n.ctx, args...)
	case ir.ChainTransposer:
		c, err = engine.NewTransposer(n.ctx, args[0], args[1])
	case ir.ChainRanger:
		c, err = engine.NewRanger(n.ctx, args[0])
	case ir.ChainIndexer:
		c, err = engine.NewIndexer(n.ctx, args[0], args[1])
	case ir.ChainSelector:
		c, err = engine.NewSelector(n.ctx, args[0], args[1:]...)
	case ir.ChainKeyboard:
		k := host.NewKeyboard(n.ctx)
		n.keyboards = append(n.keyboards, k)
		c = k
	default:
		err = fmt.Errorf("unknown chain kind %q", spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", name, err)
	}

	n.chains[name] = c
	return c, nil
}

// resolve turns an argument into a built chain or a raw literal.
func (n *Network) resolve(a ir.Arg, specs map[string]ir.ChainSpec) (any, error) {
	if a.Ref == "" {
		return a.Literal, nil
	}
	return n.buildChain(a.Ref, specs)
}

func (n *Network) buildPulse(ps ir.PulseSpec, target func(string) engine.Pulse) (engine.Pulse, error) {
	switch ps.Kind {
	case ir.PulseCycler:
		source, err := n.resolve(*ps.Chain, nil)
		if err != nil {
			return nil, err
		}
		var opts []engine.CyclerOption
		if ps.FirstIf != nil {
			v, err := n.resolve(*ps.FirstIf, nil)
			if err != nil {
				return nil, err
			}
			opts = append(opts, engine.FirstIf(v))
		}
		if ps.NextIf != nil {
			v, err := n.resolve(*ps.NextIf, nil)
			if err != nil {
				return nil, err
			}
			opts = append(opts, engine.NextIf(v))
		}
		if ps.LoopIf != nil {
			v, err := n.resolve(*ps.LoopIf, nil)
			if err != nil {
				return nil, err
			}
			opts = append(opts, engine.LoopIf(v))
		}
		return engine.NewCycler(n.ctx, source, target(ps.Out), opts...)

	case ir.PulseSprayer:
		targets := make([]engine.Pulse, len(ps.Targets))
		for i, name := range ps.Targets {
			targets[i] = target(name)
		}
		return engine.NewSprayer(n.ctx, targets...), nil

	case ir.PulseControl:
		return n.out.Control(ps.Number), nil

	default:
		return nil, fmt.Errorf("unknown pulse kind %q", ps.Kind)
	}
}

// Patch returns the patch the network was built from.
func (n *Network) Patch() *ir.Patch {
	return n.patch
}

// Context returns the network's engine context.
func (n *Network) Context() *engine.Context {
	return n.ctx
}

// Outputter returns the network's note holders and emitter.
func (n *Network) Outputter() *host.Outputter {
	return n.out
}

// Root returns the pulse triggers are fired into.
func (n *Network) Root() engine.Pulse {
	return n.root
}

// Chain returns the named chain.
func (n *Network) Chain(name string) (engine.Chain, bool) {
	c, ok := n.chains[name]
	return c, ok
}

// Pulse returns the named pulse.
func (n *Network) Pulse(name string) (engine.Pulse, bool) {
	p, ok := n.pulses[name]
	return p, ok
}

// Keyboards returns the network's keyboard chains in declaration order.
func (n *Network) Keyboards() []*host.Keyboard {
	return n.keyboards
}

// Driver returns a new Driver ticking this network and firing its root.
func (n *Network) Driver(opts ...engine.DriverOption) *engine.Driver {
	return engine.NewDriver(n.ctx, n.root, opts...)
}
