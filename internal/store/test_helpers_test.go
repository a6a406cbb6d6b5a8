package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tangram/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPatch returns a small valid patch.
func createTestPatch(name string) *ir.Patch {
	first := ir.LitArg(int64(0))
	next := ir.LitArg("..")
	notes := ir.RefArg("notes")
	return &ir.Patch{
		Name:   name,
		Seed:   3,
		Output: ir.OutputSpec{Duration: 100},
		Chains: []ir.ChainSpec{
			{Name: "notes", Kind: ir.ChainAssembler, Args: []ir.Arg{
				ir.LitArg(int64(60)), ir.LitArg([]any{int64(62), nil, int64(64)}),
			}},
		},
		Pulses: []ir.PulseSpec{
			{Name: "walk", Kind: ir.PulseCycler, Chain: &notes, Out: "pitch", FirstIf: &first, NextIf: &next, LoopIf: &next},
			{Name: "fan", Kind: ir.PulseSprayer, Targets: []string{"walk", "emit"}},
		},
		Root: "fan",
	}
}

// createKeyboardPatch returns a patch walking the held keys.
func createKeyboardPatch() *ir.Patch {
	p := createTestPatch("keys")
	p.Chains = []ir.ChainSpec{{Name: "notes", Kind: ir.ChainKeyboard}}
	return p
}

// createTestSession writes a session for a test patch and returns it.
func createTestSession(t *testing.T, s *Store, id string) ir.Session {
	t.Helper()
	p := createTestPatch("test")
	sess, err := NewSession(fixedID(id), p, `name: "test"`, p.Seed)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	if err := s.CreateSession(context.Background(), sess, p); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

// createTestNote creates a note with minimal required fields.
func createTestNote(sessionID string, tick int64, ordinal, pitch int) ir.Note {
	return ir.Note{
		SessionID: sessionID,
		Tick:      tick,
		Ordinal:   ordinal,
		Pitch:     pitch,
		Velocity:  100,
		Duration:  100,
	}
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }
