package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/tangram/internal/ir"
)

// marshalPatch converts a compiled patch to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal patches store byte-identical text.
func marshalPatch(p *ir.Patch) (string, error) {
	data, err := ir.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("marshal patch: %w", err)
	}
	return string(data), nil
}

// unmarshalPatch parses patch JSON TEXT from the database.
//
// Literal numbers are decoded as int64, the type the patch compiler produces,
// so a stored patch hashes the same as the one that was written.
func unmarshalPatch(data string) (*ir.Patch, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var p ir.Patch
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}

	for i := range p.Chains {
		for j := range p.Chains[i].Args {
			if err := normalizeArg(&p.Chains[i].Args[j]); err != nil {
				return nil, fmt.Errorf("unmarshal patch: chain %s: %w", p.Chains[i].Name, err)
			}
		}
	}
	for i := range p.Pulses {
		ps := &p.Pulses[i]
		for _, a := range []*ir.Arg{ps.Chain, ps.FirstIf, ps.NextIf, ps.LoopIf} {
			if a == nil {
				continue
			}
			if err := normalizeArg(a); err != nil {
				return nil, fmt.Errorf("unmarshal patch: pulse %s: %w", ps.Name, err)
			}
		}
	}
	return &p, nil
}

func normalizeArg(a *ir.Arg) error {
	if a.Ref != "" {
		return nil
	}
	lit, err := normalizeLiteral(a.Literal)
	if err != nil {
		return err
	}
	a.Literal = lit
	return nil
}

// normalizeLiteral converts json.Number to int64, recursing into lists.
func normalizeLiteral(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("literal %s is not an integer", val)
		}
		return n, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalizeLiteral(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
