package engine

import "github.com/roach88/tangram/internal/ir"

// Assembler concatenates its sources in argument order.
type Assembler struct {
	cell
	parts []Chain
}

// NewAssembler wraps each part and returns their concatenation.
func NewAssembler(ctx *Context, parts ...any) (*Assembler, error) {
	chains, err := wrapAll(ctx, parts)
	if err != nil {
		return nil, err
	}
	a := &Assembler{parts: chains}
	a.cell = newCell(ctx, ir.ChainAssembler, a.assemble)
	return a, nil
}

func (a *Assembler) assemble() ir.Seq {
	var out ir.Seq
	for _, p := range a.parts {
		out = append(out, p.Seq()...)
	}
	return out
}

// Transposer adds offset[0] to every present slot of source.
// An absent offset counts as zero.
type Transposer struct {
	cell
	source Chain
	offset Chain
}

// NewTransposer wraps source and offset.
func NewTransposer(ctx *Context, source, offset any) (*Transposer, error) {
	chains, err := wrapAll(ctx, []any{source, offset})
	if err != nil {
		return nil, err
	}
	t := &Transposer{source: chains[0], offset: chains[1]}
	t.cell = newCell(ctx, ir.ChainTransposer, t.transpose)
	return t, nil
}

func (t *Transposer) transpose() ir.Seq {
	delta := t.offset.At(0).Or(0)
	src := t.source.Seq()
	out := make(ir.Seq, len(src))
	for i, slot := range src {
		if v, ok := slot.Get(); ok {
			out[i] = ir.Val(v + delta)
		}
	}
	return out
}

// Ranger draws params[0] random values in [0, params[1]).
//
// A one-element params chain means one draw below params[0]. A missing or
// negative length yields an empty sequence; a missing or non-positive limit
// yields rests.
type Ranger struct {
	cell
	params Chain
}

// NewRanger wraps params.
func NewRanger(ctx *Context, params any) (*Ranger, error) {
	p, err := Wrap(ctx, params)
	if err != nil {
		return nil, err
	}
	r := &Ranger{params: p}
	r.cell = newCell(ctx, ir.ChainRanger, r.draw)
	return r, nil
}

func (r *Ranger) draw() ir.Seq {
	count, limit := r.params.At(0), r.params.At(1)
	if r.params.Len() == 1 {
		count, limit = ir.Val(1), r.params.At(0)
	}

	n := max(count.Or(0), 0)
	out := make(ir.Seq, n)
	lim, ok := limit.Get()
	if !ok || lim <= 0 {
		return out
	}
	for i := range out {
		out[i] = ir.Val(r.ctx.RandomBelow(lim))
	}
	return out
}

// Indexer looks up values by position: out[i] = values[indices[i]].
type Indexer struct {
	cell
	values  Chain
	indices Chain
}

// NewIndexer wraps values and indices.
func NewIndexer(ctx *Context, values, indices any) (*Indexer, error) {
	chains, err := wrapAll(ctx, []any{values, indices})
	if err != nil {
		return nil, err
	}
	x := &Indexer{values: chains[0], indices: chains[1]}
	x.cell = newCell(ctx, ir.ChainIndexer, x.index)
	return x, nil
}

func (x *Indexer) index() ir.Seq {
	idx := x.indices.Seq()
	out := make(ir.Seq, len(idx))
	for i, slot := range idx {
		if n, ok := slot.Get(); ok {
			out[i] = x.values.At(n)
		}
	}
	return out
}

// Selector passes through the choice picked by index[0].
// A missing or out-of-range index selects nothing and yields an empty sequence.
// Only the chosen chain is evaluated.
type Selector struct {
	cell
	index   Chain
	choices []Chain
}

// NewSelector wraps index and every choice.
func NewSelector(ctx *Context, index any, choices ...any) (*Selector, error) {
	chains, err := wrapAll(ctx, append([]any{index}, choices...))
	if err != nil {
		return nil, err
	}
	s := &Selector{index: chains[0], choices: chains[1:]}
	s.cell = newCell(ctx, ir.ChainSelector, s.choose)
	return s, nil
}

func (s *Selector) choose() ir.Seq {
	i, ok := s.index.At(0).Get()
	if !ok || i < 0 || i >= len(s.choices) {
		return ir.Seq{}
	}
	return s.choices[i].Seq()
}
