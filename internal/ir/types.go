package ir

// Chain kinds accepted in a patch.
const (
	ChainConst      = "const"
	ChainAssembler  = "assembler"
	ChainTransposer = "transposer"
	ChainRanger     = "ranger"
	ChainIndexer    = "indexer"
	ChainSelector   = "selector"
	ChainKeyboard   = "keyboard"
)

// Pulse kinds accepted in a patch.
const (
	PulseCycler  = "cycler"
	PulseSprayer = "sprayer"
	PulseControl = "control"
)

// Built-in pulse targets provided by the host bridge.
const (
	TargetPitch    = "pitch"
	TargetVelocity = "velocity"
	TargetDuration = "duration"
	TargetEmit     = "emit"
	TargetNop      = "nop"
)

// ValidChainKinds defines allowed chain kinds.
var ValidChainKinds = map[string]bool{
	ChainConst:      true,
	ChainAssembler:  true,
	ChainTransposer: true,
	ChainRanger:     true,
	ChainIndexer:    true,
	ChainSelector:   true,
	ChainKeyboard:   true,
}

// ValidPulseKinds defines allowed pulse kinds.
var ValidPulseKinds = map[string]bool{
	PulseCycler:  true,
	PulseSprayer: true,
	PulseControl: true,
}

// BuiltinTargets are pulse names every patch can fire into.
var BuiltinTargets = map[string]bool{
	TargetPitch:    true,
	TargetVelocity: true,
	TargetDuration: true,
	TargetEmit:     true,
	TargetNop:      true,
}

// Patch is a compiled composition: named chains and pulses plus a root.
// Chains and Pulses keep declaration order.
type Patch struct {
	Name   string      `json:"name"`
	Seed   int64       `json:"seed"`
	Output OutputSpec  `json:"output"`
	Chains []ChainSpec `json:"chains"`
	Pulses []PulseSpec `json:"pulses"`
	Root   string      `json:"root"`
}

// OutputSpec holds the initial values of the host note holders.
type OutputSpec struct {
	Pitch    int `json:"pitch"`
	Velocity int `json:"velocity"`
	Duration int `json:"duration"`
}

// ChainSpec declares one named chain.
//
// Args are positional per kind:
//
//	const:      [value]
//	assembler:  [part...]
//	transposer: [source, offset]
//	ranger:     [params]
//	indexer:    [values, indices]
//	selector:   [index, choice...]
//	keyboard:   []
type ChainSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Args []Arg  `json:"args"`
}

// PulseSpec declares one named pulse.
type PulseSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	// Cycler fields.
	Chain   *Arg   `json:"chain,omitempty"`
	Out     string `json:"out,omitempty"`
	FirstIf *Arg   `json:"first_if,omitempty"`
	NextIf  *Arg   `json:"next_if,omitempty"`
	LoopIf  *Arg   `json:"loop_if,omitempty"`

	// Sprayer targets, fired in order.
	Targets []string `json:"targets,omitempty"`

	// Control change number.
	Number int `json:"number,omitempty"`
}

// Refs returns the chain names referenced by the chain's arguments.
func (c ChainSpec) Refs() []string {
	var refs []string
	for _, a := range c.Args {
		if a.Ref != "" {
			refs = append(refs, a.Ref)
		}
	}
	return refs
}

// Refs returns the chain names referenced by the pulse.
func (p PulseSpec) Refs() []string {
	var refs []string
	for _, a := range []*Arg{p.Chain, p.FirstIf, p.NextIf, p.LoopIf} {
		if a != nil && a.Ref != "" {
			refs = append(refs, a.Ref)
		}
	}
	return refs
}

// Fires returns the pulse names this pulse fires into.
func (p PulseSpec) Fires() []string {
	switch p.Kind {
	case PulseCycler:
		if p.Out == "" {
			return nil
		}
		return []string{p.Out}
	case PulseSprayer:
		return p.Targets
	default:
		return nil
	}
}

// Arg is either a reference to a named chain or a raw literal.
//
// Literal holds int64, string, nil (a rest) or []any of the same.
type Arg struct {
	Ref     string `json:"ref,omitempty"`
	Literal any    `json:"literal,omitempty"`
}

// RefArg returns an Arg referencing the named chain.
func RefArg(name string) Arg {
	return Arg{Ref: name}
}

// LitArg returns a literal Arg.
func LitArg(v any) Arg {
	return Arg{Literal: v}
}

// Canonical returns the canonical JSON form of the argument.
func (a Arg) Canonical() any {
	if a.Ref != "" {
		return map[string]any{"ref": a.Ref}
	}
	return map[string]any{"literal": a.Literal}
}

// Note is one emitted note: the host bridge's pitch, velocity and duration at a tick.
type Note struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Tick      int64  `json:"tick"`
	Ordinal   int    `json:"ordinal"`
	Pitch     int    `json:"pitch"`
	Velocity  int    `json:"velocity"`
	Duration  int    `json:"duration"`
}

// Control is one emitted control change.
type Control struct {
	SessionID string `json:"session_id,omitempty"`
	Tick      int64  `json:"tick"`
	Ordinal   int    `json:"ordinal"`
	Number    int    `json:"number"`
	Value     int    `json:"value"`
}

// Session describes one recorded performance of a patch.
type Session struct {
	ID            string `json:"id"`
	PatchName     string `json:"patch_name"`
	PatchHash     string `json:"patch_hash"`
	PatchSource   string `json:"patch_source"`
	Seed          int64  `json:"seed"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
}

// Event is one input trigger delivered to a patch's root pulse.
// Error is empty unless evaluation of the event failed.
type Event struct {
	SessionID string `json:"session_id,omitempty"`
	Tick      int64  `json:"tick"`
	Value     int    `json:"value"`
	Error     string `json:"error,omitempty"`
}

// Key change kinds.
const (
	KeyOn     = "on"
	KeyOff    = "off"
	KeyAllOff = "all_off"
)

// KeyEvent is a key pressed or released on every keyboard chain of a patch.
// It takes effect before the trigger at Tick. Seq orders key events within
// a session.
type KeyEvent struct {
	SessionID string `json:"session_id,omitempty"`
	Seq       int    `json:"seq"`
	Tick      int64  `json:"tick"`
	Kind      string `json:"kind"`
	Pitch     int    `json:"pitch,omitempty"`
}
