package patch

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tangram/internal/ir"
)

// DefaultOutput holds the note values used when a patch has no output block.
var DefaultOutput = ir.OutputSpec{Pitch: 0, Velocity: 0, Duration: 100}

// chainFields lists, per chain kind, the CUE fields that become positional
// arguments. A field ending in "..." is a list spread into the remaining args.
var chainFields = map[string][]string{
	ir.ChainConst:      {"value"},
	ir.ChainAssembler:  {"parts..."},
	ir.ChainTransposer: {"source", "offset"},
	ir.ChainRanger:     {"params"},
	ir.ChainIndexer:    {"values", "indices"},
	ir.ChainSelector:   {"index", "choices..."},
	ir.ChainKeyboard:   {},
}

// CompileError reports a patch that cannot be read, with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileSource compiles CUE source text into a patch.
// filename is used only for error positions.
func CompileSource(filename string, src []byte) (*ir.Patch, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// Compile reads a patch from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the patch document itself:
//
//	name: "tangram"
//	seed: 1
//	chains: P0: {kind: "assembler", parts: [59, 61, 64]}
//	pulses: input: {kind: "cycler", chain: {ref: "P0"}, out: "pitch", first_if: 0}
//	root: "input"
//
// Compile checks structure only; use Validate for references and literals.
func Compile(v cue.Value) (*ir.Patch, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Patch{Output: DefaultOutput}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	p.Name = name

	if seedVal := v.LookupPath(cue.ParsePath("seed")); seedVal.Exists() {
		seed, err := seedVal.Int64()
		if err != nil {
			return nil, &CompileError{Field: "seed", Message: "seed must be an integer", Pos: seedVal.Pos()}
		}
		p.Seed = seed
	}

	if outVal := v.LookupPath(cue.ParsePath("output")); outVal.Exists() {
		if p.Output, err = parseOutput(outVal); err != nil {
			return nil, err
		}
	}

	if p.Chains, err = parseChains(v); err != nil {
		return nil, err
	}
	if p.Pulses, err = parsePulses(v); err != nil {
		return nil, err
	}

	if p.Root, err = requiredString(v, "root"); err != nil {
		return nil, err
	}

	return p, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func parseOutput(v cue.Value) (ir.OutputSpec, error) {
	out := DefaultOutput
	targets := map[string]*int{
		"pitch":    &out.Pitch,
		"velocity": &out.Velocity,
		"duration": &out.Duration,
	}

	iter, err := v.Fields()
	if err != nil {
		return out, formatCUEError(err)
	}
	for iter.Next() {
		dst, ok := targets[iter.Label()]
		if !ok {
			return out, &CompileError{
				Field:   "output." + iter.Label(),
				Message: "unknown output field, must be pitch, velocity or duration",
				Pos:     iter.Value().Pos(),
			}
		}
		n, err := iter.Value().Int64()
		if err != nil {
			return out, &CompileError{Field: "output." + iter.Label(), Message: "must be an integer", Pos: iter.Value().Pos()}
		}
		*dst = int(n)
	}
	return out, nil
}

// parseChains extracts chain declarations in source order.
func parseChains(v cue.Value) ([]ir.ChainSpec, error) {
	chainsVal := v.LookupPath(cue.ParsePath("chains"))
	if !chainsVal.Exists() {
		return nil, nil
	}

	iter, err := chainsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var chains []ir.ChainSpec
	for iter.Next() {
		spec, err := parseChain(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		chains = append(chains, spec)
	}
	return chains, nil
}

func parseChain(name string, v cue.Value) (ir.ChainSpec, error) {
	spec := ir.ChainSpec{Name: name}
	field := "chains." + name

	kind, err := requiredString(v, "kind")
	if err != nil {
		return spec, prefixField(err, field)
	}
	spec.Kind = kind

	fields, ok := chainFields[kind]
	if !ok {
		return spec, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown chain kind %q", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	spec.Args = []ir.Arg{}
	for _, f := range fields {
		spread := len(f) > 3 && f[len(f)-3:] == "..."
		if spread {
			f = f[:len(f)-3]
		}

		fv := v.LookupPath(cue.ParsePath(f))
		if !fv.Exists() {
			if spread {
				continue
			}
			return spec, &CompileError{
				Field:   field + "." + f,
				Message: fmt.Sprintf("%s chains require %q", kind, f),
				Pos:     v.Pos(),
			}
		}

		if !spread {
			arg, err := parseArg(fv, field+"."+f)
			if err != nil {
				return spec, err
			}
			spec.Args = append(spec.Args, arg)
			continue
		}

		list, err := fv.List()
		if err != nil {
			return spec, &CompileError{Field: field + "." + f, Message: "must be a list", Pos: fv.Pos()}
		}
		for i := 0; list.Next(); i++ {
			arg, err := parseArg(list.Value(), fmt.Sprintf("%s.%s[%d]", field, f, i))
			if err != nil {
				return spec, err
			}
			spec.Args = append(spec.Args, arg)
		}
	}

	return spec, nil
}

// parsePulses extracts pulse declarations in source order.
func parsePulses(v cue.Value) ([]ir.PulseSpec, error) {
	pulsesVal := v.LookupPath(cue.ParsePath("pulses"))
	if !pulsesVal.Exists() {
		return nil, nil
	}

	iter, err := pulsesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var pulses []ir.PulseSpec
	for iter.Next() {
		spec, err := parsePulse(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		pulses = append(pulses, spec)
	}
	return pulses, nil
}

func parsePulse(name string, v cue.Value) (ir.PulseSpec, error) {
	spec := ir.PulseSpec{Name: name}
	field := "pulses." + name

	kind, err := requiredString(v, "kind")
	if err != nil {
		return spec, prefixField(err, field)
	}
	spec.Kind = kind

	switch kind {
	case ir.PulseCycler:
		chainVal := v.LookupPath(cue.ParsePath("chain"))
		if !chainVal.Exists() {
			return spec, &CompileError{Field: field + ".chain", Message: "cycler requires a chain", Pos: v.Pos()}
		}
		arg, err := parseArg(chainVal, field+".chain")
		if err != nil {
			return spec, err
		}
		spec.Chain = &arg

		if spec.Out, err = requiredString(v, "out"); err != nil {
			return spec, prefixField(err, field)
		}

		ranges := []struct {
			field string
			dst   **ir.Arg
		}{
			{"first_if", &spec.FirstIf},
			{"next_if", &spec.NextIf},
			{"loop_if", &spec.LoopIf},
		}
		for _, r := range ranges {
			f, dst := r.field, r.dst
			fv := v.LookupPath(cue.ParsePath(f))
			if !fv.Exists() {
				continue
			}
			arg, err := parseArg(fv, field+"."+f)
			if err != nil {
				return spec, err
			}
			*dst = &arg
		}

	case ir.PulseSprayer:
		targetsVal := v.LookupPath(cue.ParsePath("targets"))
		if !targetsVal.Exists() {
			return spec, &CompileError{Field: field + ".targets", Message: "sprayer requires targets", Pos: v.Pos()}
		}
		if err := targetsVal.Decode(&spec.Targets); err != nil {
			return spec, &CompileError{Field: field + ".targets", Message: "targets must be a list of pulse names", Pos: targetsVal.Pos()}
		}

	case ir.PulseControl:
		numVal := v.LookupPath(cue.ParsePath("number"))
		if !numVal.Exists() {
			return spec, &CompileError{Field: field + ".number", Message: "control requires a number", Pos: v.Pos()}
		}
		n, err := numVal.Int64()
		if err != nil {
			return spec, &CompileError{Field: field + ".number", Message: "number must be an integer", Pos: numVal.Pos()}
		}
		spec.Number = int(n)

	default:
		return spec, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown pulse kind %q", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	return spec, nil
}

// parseArg reads a chain argument: {ref: "name"} or a literal.
func parseArg(v cue.Value, field string) (ir.Arg, error) {
	if v.Kind() == cue.StructKind {
		refVal := v.LookupPath(cue.ParsePath("ref"))
		ref, err := refVal.String()
		if !refVal.Exists() || err != nil || ref == "" {
			return ir.Arg{}, &CompileError{
				Field:   field,
				Message: `a struct argument must be a chain reference {ref: "name"}`,
				Pos:     v.Pos(),
			}
		}
		return ir.RefArg(ref), nil
	}

	lit, err := parseLiteral(v, field)
	if err != nil {
		return ir.Arg{}, err
	}
	return ir.LitArg(lit), nil
}

// parseLiteral converts a concrete CUE value into int64, string, nil or []any.
func parseLiteral(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return n, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for i := 0; iter.Next(); i++ {
			elem, err := parseLiteral(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: field, Message: "floats are not allowed in literals", Pos: v.Pos()}
	case cue.StructKind:
		return nil, &CompileError{Field: field, Message: "chain references are not allowed inside list literals", Pos: v.Pos()}
	default:
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return nil, &CompileError{Field: field, Message: "literal must be concrete: int, string, null or list", Pos: v.Pos()}
	}
}

func prefixField(err error, prefix string) error {
	if ce, ok := err.(*CompileError); ok {
		ce.Field = prefix + "." + ce.Field
		return ce
	}
	return err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
