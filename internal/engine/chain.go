package engine

import "github.com/roach88/tangram/internal/ir"

// Chain is a lazily computed sequence of slots, materialized at most once per tick.
//
// For a fixed stamp every accessor returns the same answer regardless of how
// often or in which order it is called. Out-of-range indices yield ir.Rest.
// The slice returned by Seq is shared with the cache and must not be modified.
type Chain interface {
	Len() int
	At(i int) ir.Slot
	Seq() ir.Seq
	String() string
}

// cell is the per-node cache shared by every chain variant.
//
// stamp starts at -1 so the first access always computes. busy is set for the
// duration of compute; seeing it on entry means the chain depends on itself.
type cell struct {
	ctx     *Context
	kind    string
	stamp   int64
	seq     ir.Seq
	busy    bool
	compute func() ir.Seq
}

func newCell(ctx *Context, kind string, compute func() ir.Seq) cell {
	return cell{ctx: ctx, kind: kind, stamp: -1, compute: compute}
}

// Seq returns the sequence for the current tick, computing it on first access.
// Re-entry during compute panics with a CYCLIC_DEPENDENCY RuntimeError.
func (c *cell) Seq() ir.Seq {
	stamp := c.ctx.Stamp()
	if c.stamp == stamp {
		return c.seq
	}
	if c.busy {
		panic(NewCycleError(stamp, c.kind))
	}

	c.busy = true
	defer func() { c.busy = false }()

	seq := c.compute()
	c.seq = seq
	c.stamp = stamp
	c.ctx.computed(c.kind)
	return seq
}

// Len returns the length of the current sequence.
func (c *cell) Len() int {
	return len(c.Seq())
}

// At returns slot i of the current sequence, or ir.Rest out of bounds.
func (c *cell) At(i int) ir.Slot {
	return c.Seq().At(i)
}

// String renders the current sequence, e.g. "[1 3 . -5]".
func (c *cell) String() string {
	return c.Seq().String()
}

// Kind returns the chain's kind name.
func (c *cell) Kind() string {
	return c.kind
}

// Const is an immutable literal chain.
type Const struct {
	cell
	values ir.Seq
}

// NewConst flattens raw and wraps it in a Const.
func NewConst(ctx *Context, raw any) (*Const, error) {
	seq, err := Flatten(raw)
	if err != nil {
		return nil, err
	}
	return newConst(ctx, seq), nil
}

func newConst(ctx *Context, seq ir.Seq) *Const {
	c := &Const{values: seq}
	c.cell = newCell(ctx, ir.ChainConst, func() ir.Seq { return c.values })
	return c
}

// Computed is a chain whose sequence comes from a caller-supplied function.
// It follows the same caching contract as every other chain, so fn runs at most
// once per tick. Host bridges use it to expose external state as a chain.
type Computed struct {
	cell
}

// NewComputed creates a Computed chain of the given kind.
func NewComputed(ctx *Context, kind string, fn func() ir.Seq) *Computed {
	return &Computed{cell: newCell(ctx, kind, fn)}
}

// Forward is a placeholder chain bound to its target after construction.
// Patch building uses it so chains may be declared in any order.
// An unbound Forward is empty.
type Forward struct {
	cell
	name   string
	target Chain
}

// NewForward creates an unbound Forward for the named chain.
func NewForward(ctx *Context, name string) *Forward {
	f := &Forward{name: name}
	f.cell = newCell(ctx, "forward", func() ir.Seq {
		if f.target == nil {
			return nil
		}
		return f.target.Seq()
	})
	return f
}

// Bind sets the chain the Forward resolves to.
func (f *Forward) Bind(target Chain) {
	f.target = target
}

// Name returns the name the Forward stands for.
func (f *Forward) Name() string {
	return f.name
}
