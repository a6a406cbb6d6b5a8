package engine

import (
	"fmt"
	"math"

	"github.com/roach88/tangram/internal/ir"
)

// Flatten converts a raw literal into a flat slot sequence.
//
// Accepted literals:
//   - any Go integer: a one-element sequence; unsigned values above the
//     int range fail with UNSUPPORTED_LITERAL
//   - nil: a single rest
//   - a string over {0-9, .}: one slot per character, '.' is a rest
//   - ir.Slot and ir.Seq: taken as-is
//   - []any, []int, []string: flattened depth-first, left to right
//
// A string with any other character fails with MALFORMED_LITERAL carrying
// the whole string. Other Go types fail with UNSUPPORTED_LITERAL.
func Flatten(raw any) (ir.Seq, error) {
	var out ir.Seq
	if err := flattenInto(&out, raw); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *ir.Seq, raw any) error {
	switch v := raw.(type) {
	case nil:
		*out = append(*out, ir.Rest)
	case ir.Slot:
		*out = append(*out, v)
	case ir.Seq:
		*out = append(*out, v...)
	case []ir.Slot:
		*out = append(*out, v...)
	case string:
		return flattenString(out, v)
	case int:
		*out = append(*out, ir.Val(v))
	case int8:
		*out = append(*out, ir.Val(int(v)))
	case int16:
		*out = append(*out, ir.Val(int(v)))
	case int32:
		*out = append(*out, ir.Val(int(v)))
	case int64:
		*out = append(*out, ir.Val(int(v)))
	case uint8:
		*out = append(*out, ir.Val(int(v)))
	case uint16:
		*out = append(*out, ir.Val(int(v)))
	case uint32:
		return flattenUnsigned(out, uint64(v))
	case uint:
		return flattenUnsigned(out, uint64(v))
	case uint64:
		return flattenUnsigned(out, v)
	case []int:
		for _, n := range v {
			*out = append(*out, ir.Val(n))
		}
	case []string:
		for _, s := range v {
			if err := flattenString(out, s); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := flattenInto(out, elem); err != nil {
				return err
			}
		}
	default:
		return &LiteralError{
			Code:    ErrCodeUnsupportedLiteral,
			Literal: fmt.Sprintf("%T", raw),
		}
	}
	return nil
}

func flattenUnsigned(out *ir.Seq, v uint64) error {
	if v > math.MaxInt {
		return &LiteralError{
			Code:    ErrCodeUnsupportedLiteral,
			Literal: fmt.Sprintf("%d out of range", v),
		}
	}
	*out = append(*out, ir.Val(int(v)))
	return nil
}

func flattenString(out *ir.Seq, s string) error {
	start := len(*out)
	for _, r := range s {
		switch {
		case r == '.':
			*out = append(*out, ir.Rest)
		case r >= '0' && r <= '9':
			*out = append(*out, ir.Val(int(r-'0')))
		default:
			*out = (*out)[:start]
			return &LiteralError{Code: ErrCodeMalformedLiteral, Literal: s}
		}
	}
	return nil
}

// Wrap lifts a raw literal or an existing chain into a Chain.
//
// A Chain is returned unchanged, so consumers share one upstream cache.
// Anything else is flattened into a Const bound to ctx.
func Wrap(ctx *Context, raw any) (Chain, error) {
	if c, ok := raw.(Chain); ok {
		return c, nil
	}
	seq, err := Flatten(raw)
	if err != nil {
		return nil, err
	}
	return newConst(ctx, seq), nil
}

func wrapAll(ctx *Context, raws []any) ([]Chain, error) {
	chains := make([]Chain, len(raws))
	for i, raw := range raws {
		c, err := Wrap(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		chains[i] = c
	}
	return chains, nil
}

// Must panics if err is non-nil and returns v otherwise.
// Use only in tests or with literals known to be valid.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
