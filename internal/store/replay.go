package store

import (
	"context"
	"fmt"

	"github.com/roach88/tangram/internal/ir"
)

// RerunFunc rebuilds a patch with seed, delivers events in order, applying
// each key change before the trigger at its tick, and returns the notes it
// emitted.
type RerunFunc func(p *ir.Patch, seed int64, events []ir.Event, keys []ir.KeyEvent) ([]ir.Note, error)

// NoteDiff is one position where a replay disagrees with the recording.
// Want or Got is nil when one side has fewer notes.
type NoteDiff struct {
	Index int      `json:"index"`
	Want  *ir.Note `json:"want,omitempty"`
	Got   *ir.Note `json:"got,omitempty"`
}

func (d NoteDiff) String() string {
	return fmt.Sprintf("note %d: want %s, got %s", d.Index, describeNote(d.Want), describeNote(d.Got))
}

func describeNote(n *ir.Note) string {
	if n == nil {
		return "nothing"
	}
	return fmt.Sprintf("tick=%d ordinal=%d pitch=%d velocity=%d duration=%d",
		n.Tick, n.Ordinal, n.Pitch, n.Velocity, n.Duration)
}

// ReplayReport compares a recorded session with a fresh run of its patch.
type ReplayReport struct {
	SessionID      string     `json:"session_id"`
	Events         int        `json:"events"`
	Recorded       int        `json:"recorded"`
	Replayed       int        `json:"replayed"`
	RecordedDigest string     `json:"recorded_digest"`
	ReplayedDigest string     `json:"replayed_digest"`
	Diffs          []NoteDiff `json:"diffs,omitempty"`
}

// Match reports whether the replay emitted exactly the recorded notes.
func (r ReplayReport) Match() bool {
	return len(r.Diffs) == 0 && r.RecordedDigest == r.ReplayedDigest
}

// Replay re-runs a recorded session and compares the notes.
//
// The stored patch is used, not the source file, and its hash must still
// match the session's. Session IDs and note IDs are ignored when comparing.
func (s *Store) Replay(ctx context.Context, sessionID string, rerun RerunFunc) (ReplayReport, error) {
	report := ReplayReport{SessionID: sessionID}

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	p, err := s.ReadPatch(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	hash, err := ir.PatchHash(p)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	if hash != sess.PatchHash {
		return report, fmt.Errorf("replay: stored patch hash %s does not match session hash %s", hash, sess.PatchHash)
	}

	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	keys, err := s.ReadKeys(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	recorded, err := s.ReadNotes(ctx, sessionID, NoteFilter{})
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}

	replayed, err := rerun(p, sess.Seed, events, keys)
	if err != nil {
		return report, fmt.Errorf("replay: rerun: %w", err)
	}

	report.Events = len(events)
	report.Recorded = len(recorded)
	report.Replayed = len(replayed)
	report.Diffs = DiffNotes(recorded, replayed)
	if report.RecordedDigest, err = ir.TraceDigest(recorded); err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	if report.ReplayedDigest, err = ir.TraceDigest(replayed); err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	return report, nil
}

// DiffNotes compares two note lists position by position on tick, ordinal,
// pitch, velocity and duration.
func DiffNotes(want, got []ir.Note) []NoteDiff {
	var diffs []NoteDiff
	for i := 0; i < max(len(want), len(got)); i++ {
		var w, g *ir.Note
		if i < len(want) {
			w = &want[i]
		}
		if i < len(got) {
			g = &got[i]
		}
		if w != nil && g != nil && sameNote(*w, *g) {
			continue
		}
		diffs = append(diffs, NoteDiff{Index: i, Want: w, Got: g})
	}
	return diffs
}

func sameNote(a, b ir.Note) bool {
	return a.Tick == b.Tick &&
		a.Ordinal == b.Ordinal &&
		a.Pitch == b.Pitch &&
		a.Velocity == b.Velocity &&
		a.Duration == b.Duration
}
