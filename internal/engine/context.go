package engine

import "math/rand/v2"

// DefaultMaxFires is the default number of engine pulse firings allowed per tick.
// A patch whose pulses feed back into each other stops here instead of recursing
// until the stack is exhausted.
const DefaultMaxFires = 10000

// pcgStream is the fixed second PCG word; the seed alone selects the sequence.
const pcgStream = 0x9e3779b97f4a7c15

// RandomSource draws integers in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// Observer receives evaluation events for metrics and tracing.
// Implementations must not call back into the network.
type Observer interface {
	Ticked(stamp int64)
	Computed(kind string)
	Fired(kind string)
}

type nopObserver struct{}

func (nopObserver) Ticked(int64)    {}
func (nopObserver) Computed(string) {}
func (nopObserver) Fired(string)    {}

// Context is the logical environment shared by every chain and pulse of one
// network: the clock that defines a tick and the random source chains draw from.
//
// A Context is created once per running network and passed by reference.
// Chains and pulses only read the stamp; the Driver alone calls Tick.
type Context struct {
	clock    *Clock
	rng      RandomSource
	observer Observer

	maxFires int
	fires    int
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithSeed seeds the Context's PCG generator.
// The same seed and event sequence always produce the same output.
func WithSeed(seed int64) ContextOption {
	return func(c *Context) {
		c.rng = rand.New(rand.NewPCG(uint64(seed), pcgStream))
	}
}

// WithRandom replaces the random source, e.g. with a scripted source in tests.
func WithRandom(src RandomSource) ContextOption {
	return func(c *Context) {
		c.rng = src
	}
}

// WithClock shares an existing clock, so a rebuilt network keeps counting
// from where the previous one stopped.
func WithClock(clock *Clock) ContextOption {
	return func(c *Context) {
		c.clock = clock
	}
}

// WithObserver attaches an evaluation observer.
func WithObserver(o Observer) ContextOption {
	return func(c *Context) {
		c.observer = o
	}
}

// WithMaxFires sets the per-tick pulse firing quota.
//
// Default: 10000 (DefaultMaxFires).
// Use WithMaxFires(10) for testing quota enforcement.
func WithMaxFires(n int) ContextOption {
	return func(c *Context) {
		c.maxFires = n
	}
}

// NewContext creates a Context at stamp 0 seeded with 0 unless options say otherwise.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		clock:    NewClock(),
		rng:      rand.New(rand.NewPCG(0, pcgStream)),
		observer: nopObserver{},
		maxFires: DefaultMaxFires,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tick advances the logical clock by one and resets the firing quota.
func (c *Context) Tick() {
	stamp := c.clock.Tick()
	c.fires = 0
	c.observer.Ticked(stamp)
}

// Stamp returns the current tick.
func (c *Context) Stamp() int64 {
	return c.clock.Stamp()
}

// Clock returns the underlying clock.
func (c *Context) Clock() *Clock {
	return c.clock
}

// RandomBelow returns a random integer in [0, limit). limit must be positive.
func (c *Context) RandomBelow(limit int) int {
	return c.rng.IntN(limit)
}

// fired counts one engine pulse firing against the per-tick quota.
// Exceeding the quota aborts the current event with QUOTA_EXCEEDED.
func (c *Context) fired(kind string) {
	c.fires++
	if c.maxFires > 0 && c.fires > c.maxFires {
		panic(NewQuotaError(c.Stamp(), c.fires, c.maxFires))
	}
	c.observer.Fired(kind)
}

func (c *Context) computed(kind string) {
	c.observer.Computed(kind)
}
