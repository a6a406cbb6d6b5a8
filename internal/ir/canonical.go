package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Canonicaler is implemented by types that know their canonical JSON shape.
type Canonicaler interface {
	Canonical() any
}

// MarshalCanonical produces RFC 8785 style canonical JSON for hashing.
// This is the ONLY serialization used for content-addressed identity.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//
// Unlike general IR, null is allowed: it encodes a rest slot.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Slot:
		if n, ok := val.Get(); ok {
			fmt.Fprintf(buf, "%d", n)
		} else {
			buf.WriteString("null")
		}
	case Canonicaler:
		return marshalCanonical(buf, val.Canonical())
	case string:
		return marshalCanonicalString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalCanonicalArray(buf, arr)
	case []int:
		arr := make([]any, len(val))
		for i, n := range val {
			arr[i] = n
		}
		return marshalCanonicalArray(buf, arr)
	case []any:
		return marshalCanonicalArray(buf, val)
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString writes a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the encoder's U+2028 and U+2029 escapes back into
// literal characters, leaving an escaped backslash followed by "u2028" intact.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++
			continue
		}
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	buf.WriteByte('{')
	for i, k := range sortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// sortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders differently.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Canonical returns the canonical JSON form of the patch.
func (p *Patch) Canonical() any {
	chains := make([]any, len(p.Chains))
	for i, c := range p.Chains {
		args := make([]any, len(c.Args))
		for j, a := range c.Args {
			args[j] = a
		}
		chains[i] = map[string]any{"name": c.Name, "kind": c.Kind, "args": args}
	}

	pulses := make([]any, len(p.Pulses))
	for i, ps := range p.Pulses {
		m := map[string]any{"name": ps.Name, "kind": ps.Kind}
		for key, a := range map[string]*Arg{
			"chain": ps.Chain, "first_if": ps.FirstIf, "next_if": ps.NextIf, "loop_if": ps.LoopIf,
		} {
			if a != nil {
				m[key] = *a
			}
		}
		if ps.Out != "" {
			m["out"] = ps.Out
		}
		if len(ps.Targets) > 0 {
			m["targets"] = ps.Targets
		}
		if ps.Kind == PulseControl {
			m["number"] = ps.Number
		}
		pulses[i] = m
	}

	return map[string]any{
		"name": p.Name,
		"seed": p.Seed,
		"output": map[string]any{
			"pitch":    p.Output.Pitch,
			"velocity": p.Output.Velocity,
			"duration": p.Output.Duration,
		},
		"chains": chains,
		"pulses": pulses,
		"root":   p.Root,
	}
}

// Canonical returns the canonical JSON form of the note, without its ID.
func (n Note) Canonical() any {
	return map[string]any{
		"session_id": n.SessionID,
		"tick":       n.Tick,
		"ordinal":    n.Ordinal,
		"pitch":      n.Pitch,
		"velocity":   n.Velocity,
		"duration":   n.Duration,
	}
}
