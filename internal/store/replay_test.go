package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
)

// recordSession builds p into a store session and plays values through it.
func recordSession(t *testing.T, s *Store, id string, p *ir.Patch, values ...int) {
	t.Helper()
	ctx := context.Background()

	sess, err := NewSession(fixedID(id), p, "", p.Seed)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	if err := s.CreateSession(ctx, sess, p); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	sink := NewSessionSink(ctx, s, id, nil)
	n, err := patch.Build(p, sink)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	d := n.Driver(engine.WithEventHook(sink.Hook()))
	for _, v := range values {
		_ = d.OnEvent(v)
	}
}

// keyStep is one step of a played session: a key change when kind is set,
// otherwise a trigger carrying value.
type keyStep struct {
	kind  string
	pitch int
	value int
}

// recordKeyboardSession plays steps through p, pressing keys on every
// keyboard chain and recording them the way a live performance does.
func recordKeyboardSession(t *testing.T, s *Store, id string, p *ir.Patch, steps ...keyStep) {
	t.Helper()
	ctx := context.Background()

	sess, err := NewSession(fixedID(id), p, "", p.Seed)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	if err := s.CreateSession(ctx, sess, p); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	sink := NewSessionSink(ctx, s, id, nil)
	n, err := patch.Build(p, sink)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	d := n.Driver(engine.WithEventHook(sink.Hook()))
	for _, st := range steps {
		if st.kind == "" {
			_ = d.OnEvent(st.value)
			continue
		}
		k := ir.KeyEvent{Tick: n.Context().Stamp() + 1, Kind: st.kind, Pitch: st.pitch}
		for _, kbd := range n.Keyboards() {
			if err := kbd.Apply(k); err != nil {
				t.Fatalf("Apply() failed: %v", err)
			}
		}
		sink.Key(k)
	}
}

func rerun(p *ir.Patch, seed int64, events []ir.Event, keys []ir.KeyEvent) ([]ir.Note, error) {
	return patch.Rerun(p, seed, events, keys)
}

func TestReplay_Matches(t *testing.T) {
	s := createTestStore(t)
	p, err := patch.Tangram()
	if err != nil {
		t.Fatalf("Tangram() failed: %v", err)
	}

	values := make([]int, 64)
	for i := range values {
		values[i] = min(i%32, 1)
	}
	recordSession(t, s, "session-1", p, values...)

	report, err := s.Replay(context.Background(), "session-1", rerun)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !report.Match() {
		t.Fatalf("replay diverged: %v", report.Diffs)
	}
	if report.Events != 64 {
		t.Errorf("Events = %d, want 64", report.Events)
	}
	if report.Recorded == 0 || report.Recorded != report.Replayed {
		t.Errorf("Recorded = %d, Replayed = %d", report.Recorded, report.Replayed)
	}
}

func TestReplay_KeyboardSession(t *testing.T) {
	s := createTestStore(t)
	p := createKeyboardPatch()

	recordKeyboardSession(t, s, "session-1", p,
		keyStep{kind: ir.KeyOn, pitch: 60},
		keyStep{kind: ir.KeyOn, pitch: 64},
		keyStep{value: 0},
		keyStep{value: 1},
		keyStep{kind: ir.KeyOff, pitch: 60},
		keyStep{value: 0},
		keyStep{kind: ir.KeyAllOff},
		keyStep{value: 0},
	)

	report, err := s.Replay(context.Background(), "session-1", rerun)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !report.Match() {
		t.Fatalf("replay diverged: %v", report.Diffs)
	}
	if report.Events != 4 || report.Recorded != 4 {
		t.Errorf("Events = %d, Recorded = %d, want 4 and 4", report.Events, report.Recorded)
	}

	notes, err := s.ReadNotes(context.Background(), "session-1", NoteFilter{})
	if err != nil {
		t.Fatalf("ReadNotes() failed: %v", err)
	}
	var pitches []int
	for _, n := range notes {
		pitches = append(pitches, n.Pitch)
	}
	want := []int{60, 64, 64, 64}
	if len(pitches) != len(want) {
		t.Fatalf("pitches = %v, want %v", pitches, want)
	}
	for i := range want {
		if pitches[i] != want[i] {
			t.Errorf("pitches = %v, want %v", pitches, want)
			break
		}
	}

	// Without the keys the keyboard stays empty and the replay diverges.
	keyless := func(p *ir.Patch, seed int64, events []ir.Event, _ []ir.KeyEvent) ([]ir.Note, error) {
		return patch.Rerun(p, seed, events, nil)
	}
	report, err = s.Replay(context.Background(), "session-1", keyless)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if report.Match() {
		t.Error("expected divergence when keys are dropped")
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	s := createTestStore(t)
	recordSession(t, s, "session-1", createTestPatch("walk"), 0, 1, 1)

	shifted := func(p *ir.Patch, seed int64, events []ir.Event, keys []ir.KeyEvent) ([]ir.Note, error) {
		notes, err := patch.Rerun(p, seed, events, keys)
		if len(notes) > 0 {
			notes[1].Pitch++
		}
		return notes, err
	}

	report, err := s.Replay(context.Background(), "session-1", shifted)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if report.Match() {
		t.Fatal("expected divergence")
	}
	if len(report.Diffs) != 1 || report.Diffs[0].Index != 1 {
		t.Errorf("Diffs = %v, want one diff at index 1", report.Diffs)
	}
}

func TestReplay_RerunError(t *testing.T) {
	s := createTestStore(t)
	recordSession(t, s, "session-1", createTestPatch("walk"), 0)

	failing := func(*ir.Patch, int64, []ir.Event, []ir.KeyEvent) ([]ir.Note, error) {
		return nil, errors.New("boom")
	}
	_, err := s.Replay(context.Background(), "session-1", failing)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want rerun error", err)
	}
}

func TestReplay_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.Replay(context.Background(), "missing", rerun); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestReplay_HashMismatch(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "session-1")

	if _, err := s.db.Exec(`UPDATE sessions SET patch_hash = 'tampered' WHERE id = 'session-1'`); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	_, err := s.Replay(context.Background(), "session-1", rerun)
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("err = %v, want hash mismatch", err)
	}
}

func TestDiffNotes(t *testing.T) {
	a := ir.Note{Tick: 1, Pitch: 60}
	b := ir.Note{Tick: 2, Pitch: 62}
	c := ir.Note{Tick: 2, Pitch: 63}

	tests := []struct {
		name      string
		want, got []ir.Note
		indexes   []int
	}{
		{"equal", []ir.Note{a, b}, []ir.Note{a, b}, nil},
		{"ignores ids", []ir.Note{{ID: "x", SessionID: "s", Tick: 1, Pitch: 60}}, []ir.Note{a}, nil},
		{"changed", []ir.Note{a, b}, []ir.Note{a, c}, []int{1}},
		{"missing", []ir.Note{a, b}, []ir.Note{a}, []int{1}},
		{"extra", []ir.Note{a}, []ir.Note{a, b, c}, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffs := DiffNotes(tt.want, tt.got)
			if len(diffs) != len(tt.indexes) {
				t.Fatalf("diffs = %v, want indexes %v", diffs, tt.indexes)
			}
			for i, d := range diffs {
				if d.Index != tt.indexes[i] {
					t.Errorf("diffs[%d].Index = %d, want %d", i, d.Index, tt.indexes[i])
				}
			}
		})
	}
}

func TestNoteDiffString(t *testing.T) {
	d := NoteDiff{Index: 3, Want: &ir.Note{Tick: 4, Pitch: 60, Velocity: 1, Duration: 2}}
	want := "note 3: want tick=4 ordinal=0 pitch=60 velocity=1 duration=2, got nothing"
	if d.String() != want {
		t.Errorf("String() = %q, want %q", d.String(), want)
	}
}
