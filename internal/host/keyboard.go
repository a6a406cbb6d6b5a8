package host

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
)

// KindKeyboard is the chain kind reported by Keyboard.
const KindKeyboard = ir.ChainKeyboard

// Keyboard is a chain of the pitches currently held on an input device,
// in the order they were pressed. Pressing a held pitch again is ignored.
//
// NoteOn, NoteOff and AllNotesOff may be called from any goroutine. The chain
// takes a snapshot of the held pitches once per tick, so every reader within
// a tick sees the same notes.
type Keyboard struct {
	*engine.Computed

	mu   sync.Mutex
	held []int
}

// NewKeyboard creates an empty Keyboard bound to ctx.
func NewKeyboard(ctx *engine.Context) *Keyboard {
	k := &Keyboard{}
	k.Computed = engine.NewComputed(ctx, KindKeyboard, k.snapshot)
	return k
}

// NoteOn adds p to the held pitches unless it is already held.
func (k *Keyboard) NoteOn(p int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !slices.Contains(k.held, p) {
		k.held = append(k.held, p)
	}
}

// NoteOff releases p.
func (k *Keyboard) NoteOff(p int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i := slices.Index(k.held, p); i >= 0 {
		k.held = slices.Delete(k.held, i, i+1)
	}
}

// AllNotesOff releases every held pitch.
func (k *Keyboard) AllNotesOff() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.held = nil
}

// Apply performs a recorded key change.
func (k *Keyboard) Apply(e ir.KeyEvent) error {
	switch e.Kind {
	case ir.KeyOn:
		k.NoteOn(e.Pitch)
	case ir.KeyOff:
		k.NoteOff(e.Pitch)
	case ir.KeyAllOff:
		k.AllNotesOff()
	default:
		return fmt.Errorf("unknown key event kind %q", e.Kind)
	}
	return nil
}

// Held returns the held pitches as of now, not as of the current tick.
func (k *Keyboard) Held() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.held)
}

func (k *Keyboard) snapshot() ir.Seq {
	k.mu.Lock()
	defer k.mu.Unlock()
	return ir.Vals(k.held...)
}
