package patch

import (
	"fmt"
	"strings"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrPatchNameEmpty     = "E201" // name is required
	ErrUnknownChainKind   = "E202" // chain kind not recognised
	ErrChainArity         = "E203" // wrong number of chain arguments
	ErrUnknownChainRef    = "E204" // reference to an undeclared chain
	ErrUnknownPulseKind   = "E205" // pulse kind not recognised
	ErrUnknownPulseTarget = "E206" // pulse fires into an undeclared pulse
	ErrDuplicateName      = "E207" // name declared twice or shadows a built-in
	ErrInvalidRoot        = "E208" // root missing or not a pulse
	ErrMalformedLiteral   = "E209" // literal the parser rejects
	ErrMissingField       = "E210" // required pulse field missing
	ErrControlNumber      = "E211" // control number outside 0..127
	ErrChainCycle         = "E212" // chains reference each other in a loop
)

// ValidationError represents a patch validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a list of validation errors usable as a single error.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a compiled patch for problems that would stop it from
// building. Returns all errors found (does not fail-fast).
func Validate(p *ir.Patch) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Name) == "" {
		add("name", ErrPatchNameEmpty, "name is required and must be non-empty")
	}

	chains := make(map[string]bool, len(p.Chains))
	pulses := make(map[string]bool, len(p.Pulses))
	for _, c := range p.Chains {
		if chains[c.Name] {
			add("chains."+c.Name, ErrDuplicateName, "chain %q declared twice", c.Name)
		}
		chains[c.Name] = true
	}
	for _, ps := range p.Pulses {
		field := "pulses." + ps.Name
		switch {
		case pulses[ps.Name]:
			add(field, ErrDuplicateName, "pulse %q declared twice", ps.Name)
		case ir.BuiltinTargets[ps.Name]:
			add(field, ErrDuplicateName, "pulse %q shadows a built-in target", ps.Name)
		}
		pulses[ps.Name] = true
	}

	checkArg := func(field string, a ir.Arg) {
		if a.Ref != "" {
			if !chains[a.Ref] {
				add(field, ErrUnknownChainRef, "unknown chain %q", a.Ref)
			}
			return
		}
		if _, err := engine.Flatten(a.Literal); err != nil {
			add(field, ErrMalformedLiteral, "%v", err)
		}
	}

	for _, c := range p.Chains {
		field := "chains." + c.Name
		if !ir.ValidChainKinds[c.Kind] {
			add(field+".kind", ErrUnknownChainKind, "unknown chain kind %q", c.Kind)
			continue
		}
		if msg := checkArity(c); msg != "" {
			add(field, ErrChainArity, "%s", msg)
		}
		for i, a := range c.Args {
			checkArg(fmt.Sprintf("%s.args[%d]", field, i), a)
		}
	}

	for _, ps := range p.Pulses {
		field := "pulses." + ps.Name
		switch ps.Kind {
		case ir.PulseCycler:
			if ps.Chain == nil {
				add(field+".chain", ErrMissingField, "cycler requires a chain")
			} else {
				checkArg(field+".chain", *ps.Chain)
			}
			for i, r := range []*ir.Arg{ps.FirstIf, ps.NextIf, ps.LoopIf} {
				if r != nil {
					checkArg(field+"."+rangeFields[i], *r)
				}
			}
			if ps.Out == "" {
				add(field+".out", ErrMissingField, "cycler requires an out pulse")
			}
		case ir.PulseSprayer:
			if len(ps.Targets) == 0 {
				add(field+".targets", ErrMissingField, "sprayer requires at least one target")
			}
		case ir.PulseControl:
			if ps.Number < 0 || ps.Number > 127 {
				add(field+".number", ErrControlNumber, "control number %d outside 0..127", ps.Number)
			}
		default:
			add(field+".kind", ErrUnknownPulseKind, "unknown pulse kind %q", ps.Kind)
			continue
		}

		for _, target := range ps.Fires() {
			if target != "" && !pulses[target] && !ir.BuiltinTargets[target] {
				add(field, ErrUnknownPulseTarget, "unknown pulse target %q", target)
			}
		}
	}

	switch {
	case p.Root == "":
		add("root", ErrInvalidRoot, "root is required")
	case !pulses[p.Root] && !ir.BuiltinTargets[p.Root]:
		add("root", ErrInvalidRoot, "root %q is not a declared pulse", p.Root)
	}

	for _, w := range AnalyzeCycles(p) {
		if w.Level == LevelError {
			add("chains", ErrChainCycle, "%s", w.Message)
		}
	}

	return errs
}

var rangeFields = []string{"first_if", "next_if", "loop_if"}

func checkArity(c ir.ChainSpec) string {
	n := len(c.Args)
	switch c.Kind {
	case ir.ChainConst, ir.ChainRanger:
		if n != 1 {
			return fmt.Sprintf("%s takes 1 argument, got %d", c.Kind, n)
		}
	case ir.ChainTransposer, ir.ChainIndexer:
		if n != 2 {
			return fmt.Sprintf("%s takes 2 arguments, got %d", c.Kind, n)
		}
	case ir.ChainSelector:
		if n < 1 {
			return "selector requires an index"
		}
	case ir.ChainKeyboard:
		if n != 0 {
			return fmt.Sprintf("keyboard takes no arguments, got %d", n)
		}
	}
	return ""
}
