package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/store"
)

// runResponse is the JSON shape of a finished run.
type runResponse struct {
	Status  string     `json:"status"`
	Data    RunSummary `json:"data"`
	Session string     `json:"session"`
}

func decodeRun(t *testing.T, out string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func recordedPitches(t *testing.T, dbPath, sessionID string) []int {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	return recordedPitchesIn(t, st, sessionID)
}

func recordedPitchesIn(t *testing.T, st *store.Store, sessionID string) []int {
	t.Helper()
	notes, err := st.ReadNotes(context.Background(), sessionID, store.NoteFilter{})
	require.NoError(t, err)
	pitches := make([]int, len(notes))
	for i, n := range notes {
		pitches[i] = n.Pitch
	}
	return pitches
}

func TestRunCounter(t *testing.T) {
	path := writePatch(t, t.TempDir(), "arp.cue", arpeggioPatch)

	out, _, err := execute(t, "", "run", path, "--count", "5", "--modulo", "4")
	require.NoError(t, err)

	assert.Equal(t, 5, strings.Count(out, "dur 250"))
	assert.Contains(t, out, "C4    60  vel 100")
	assert.Contains(t, out, "E4    64")
	assert.Contains(t, out, "G4    67")
	assert.Contains(t, out, "✓ arpeggio: 5 events, 5 notes, 0 controls")
}

func TestRunStdin(t *testing.T) {
	path := writePatch(t, t.TempDir(), "arp.cue", arpeggioPatch)
	input := "0\n1\n# a comment\n\nbogus\n2\nquit\n3\n"

	out, stderr, err := execute(t, input, "--format", "json", "run", path)
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Events)
	assert.Equal(t, 3, resp.Data.Notes)
	assert.Equal(t, int64(3), resp.Data.LastTick)
	assert.Contains(t, stderr, "ignoring input")
}

func TestRunRecordsSession(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)
	db := filepath.Join(dir, "tangram.db")

	out, _, err := execute(t, "", "--format", "json", "run", path, "--db", db, "--count", "5", "--modulo", "4")
	require.NoError(t, err)

	resp := decodeRun(t, out)
	require.NotEmpty(t, resp.Session)
	assert.Equal(t, []string{resp.Session}, resp.Data.Sessions)
	assert.Equal(t, int64(7), resp.Data.Seed)
	assert.Equal(t, []int{60, 64, 67, 60, 60}, recordedPitches(t, db, resp.Session))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	sess, err := st.GetSession(context.Background(), resp.Session)
	require.NoError(t, err)
	assert.Equal(t, "arpeggio", sess.PatchName)
	assert.Equal(t, arpeggioPatch, sess.PatchSource)

	events, err := st.ReadEvents(context.Background(), resp.Session)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, 3, events[3].Value)
}

func TestRunSeedOverride(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)
	db := filepath.Join(dir, "tangram.db")

	out, _, err := execute(t, "", "--format", "json", "run", path, "--db", db, "--count", "1", "--seed", "99")
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, int64(99), resp.Data.Seed)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sess, err := st.GetSession(context.Background(), resp.Session)
	require.NoError(t, err)
	assert.Equal(t, int64(99), sess.Seed)
}

func TestRunKeyboard(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "keys.cue", keyboardPatch)
	db := filepath.Join(dir, "tangram.db")
	input := "on C4\non E4\n0\n1\noff C4\n0\npanic\n0\n"

	out, _, err := execute(t, input, "--format", "json", "run", path, "--db", db)
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, 4, resp.Data.Events)
	// With no keys held the cycler stays silent and the pitch holder keeps 64.
	assert.Equal(t, []int{60, 64, 64, 64}, recordedPitches(t, db, resp.Session))
}

func TestRunKeyboardWithoutKeyboardChain(t *testing.T) {
	path := writePatch(t, t.TempDir(), "arp.cue", arpeggioPatch)

	_, stderr, err := execute(t, "on C4\n0\n", "run", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "patch has no keyboard chain")
}

func TestRunFailedEvents(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "feedback.cue", feedbackPatch)

	out, stderr, err := execute(t, "", "run", path, "--count", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 events, 0 notes, 0 controls, 2 failed")
	assert.Contains(t, stderr, "QUOTA_EXCEEDED")
}

func TestRunMIDIFile(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)
	midiPath := filepath.Join(dir, "out.mid")

	_, _, err := execute(t, "", "run", path, "--count", "4", "--midi", midiPath, "--tempo", "90")
	require.NoError(t, err)

	data, err := os.ReadFile(midiPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "MThd"))
}

func TestRunMetricsFile(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)
	metricsPath := filepath.Join(dir, "tangram.prom")

	_, _, err := execute(t, "", "run", path, "--count", "5", "--metrics", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "tangram_ticks_total 5")
	assert.Contains(t, text, "tangram_notes_total 5")
	assert.Contains(t, text, `tangram_pulse_fires_total{kind="cycler"} 5`)
}

func TestRunBuiltinTangram(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "run", BuiltinTangram, "--count", "64", "--modulo", "32")
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, "tangram", resp.Data.Patch)
	assert.Equal(t, 64, resp.Data.Events)
	assert.Equal(t, 0, resp.Data.Failed)
	assert.Positive(t, resp.Data.Notes)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	arp := writePatch(t, dir, "arp.cue", arpeggioPatch)
	broken := writePatch(t, dir, "broken.cue", brokenRefPatch)

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{"missing patch", []string{"run", "/nonexistent/patch.cue"}, ExitCommandError, ErrCodeNotFound},
		{"invalid patch", []string{"run", broken, "--count", "1"}, ExitFailure, "E204"},
		{"negative count", []string{"run", arp, "--count", "-1"}, ExitCommandError, ErrCodeGeneric},
		{"zero tempo", []string{"run", arp, "--count", "1", "--tempo", "0"}, ExitCommandError, ErrCodeGeneric},
		{"negative tempo", []string{"run", arp, "--count", "1", "--tempo=-90"}, ExitCommandError, ErrCodeGeneric},
		{"watch with count", []string{"run", arp, "--watch", "--count", "3"}, ExitCommandError, ErrCodeGeneric},
		{"watch builtin", []string{"run", BuiltinTangram, "--watch"}, ExitCommandError, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantCode)
		})
	}
}

func TestRunReload(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)

	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	perf := &performance{
		opts: &RunOptions{
			RootOptions:      &RootOptions{Format: "json"},
			SessionGenerator: &sequenceGenerator{},
		},
		ctx:     ctx,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:   st,
		printer: &notePrinter{w: io.Discard},
		clock:   engine.NewClock(),
		stages:  make(map[*engine.Context]*stage),
	}

	lr, err := LoadPatch(path)
	require.NoError(t, err)
	stg, err := perf.build(lr)
	require.NoError(t, err)
	perf.activate(stg)
	n := stg.network

	var d *engine.Driver
	d = n.Driver(engine.WithLogger(perf.logger), engine.WithEventHook(func(stamp int64, value int, err error) {
		perf.record(d.Context(), stamp, value, err)
	}))

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.True(t, d.Enqueue(0))
	writePatch(t, dir, "arp.cue", strings.Replace(arpeggioPatch, "[60, 64, 67]", "[72, 76]", 1))
	perf.reload(d, path)
	require.True(t, d.Enqueue(0))
	require.True(t, d.Enqueue(1))
	d.Stop()
	require.NoError(t, <-done)

	summary := perf.summarize()
	assert.Equal(t, 1, summary.Reloads)
	assert.Equal(t, 3, summary.Events)
	assert.Equal(t, []string{"session-1", "session-2"}, summary.Sessions)

	first, err := st.ReadNotes(ctx, "session-1", store.NoteFilter{})
	require.NoError(t, err)
	second, err := st.ReadNotes(ctx, "session-2", store.NoteFilter{})
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, ir.Note{ID: first[0].ID, SessionID: "session-1", Tick: 1, Pitch: 60, Velocity: 100, Duration: 250}, first[0])
	require.Len(t, second, 2)
	// The clock keeps counting across the swap.
	assert.Equal(t, int64(2), second[0].Tick)
	assert.Equal(t, 72, second[0].Pitch)
	assert.Equal(t, 76, second[1].Pitch)

	events, err := st.ReadEvents(ctx, "session-2")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRunReloadKeepsPlayingOnBadPatch(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "arp.cue", arpeggioPatch)

	perf := &performance{
		opts:    &RunOptions{RootOptions: &RootOptions{Format: "json"}},
		ctx:     context.Background(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		printer: &notePrinter{w: io.Discard},
		clock:   engine.NewClock(),
		stages:  make(map[*engine.Context]*stage),
	}
	lr, err := LoadPatch(path)
	require.NoError(t, err)
	stg, err := perf.build(lr)
	require.NoError(t, err)
	perf.activate(stg)
	n := stg.network
	d := n.Driver()

	writePatch(t, dir, "arp.cue", brokenRefPatch)
	perf.reload(d, path)

	assert.Equal(t, 0, perf.summarize().Reloads)
	assert.Same(t, n.Context(), d.Context())
}

func TestRunReloadCarriesHeldKeys(t *testing.T) {
	dir := t.TempDir()
	path := writePatch(t, dir, "keys.cue", keyboardPatch)

	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	perf := &performance{
		opts: &RunOptions{
			RootOptions:      &RootOptions{Format: "json"},
			SessionGenerator: &sequenceGenerator{},
		},
		ctx:     ctx,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:   st,
		printer: &notePrinter{w: io.Discard},
		clock:   engine.NewClock(),
		stages:  make(map[*engine.Context]*stage),
	}

	lr, err := LoadPatch(path)
	require.NoError(t, err)
	stg, err := perf.build(lr)
	require.NoError(t, err)
	perf.activate(stg)

	var d *engine.Driver
	d = stg.network.Driver(engine.WithLogger(perf.logger), engine.WithEventHook(func(stamp int64, value int, err error) {
		perf.record(d.Context(), stamp, value, err)
	}))

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	press := func(in input) {
		require.True(t, d.Submit(func(c *engine.Context) { perf.press(c, in) }))
	}
	press(input{kind: inputNoteOn, value: 60})
	press(input{kind: inputNoteOn, value: 64})
	require.True(t, d.Enqueue(0))

	writePatch(t, dir, "keys.cue", strings.Replace(keyboardPatch, "velocity: 90", "velocity: 70", 1))
	perf.reload(d, path)
	require.True(t, d.Enqueue(0))
	require.True(t, d.Enqueue(1))
	d.Stop()
	require.NoError(t, <-done)

	summary := perf.summarize()
	assert.Equal(t, 1, summary.Reloads)
	assert.Equal(t, []string{"session-1", "session-2"}, summary.Sessions)
	assert.Len(t, perf.stages, 1, "the replaced network's stage is dropped")

	assert.Equal(t, []int{60}, recordedPitchesIn(t, st, "session-1"))
	// The keys held before the reload still play on the new network.
	assert.Equal(t, []int{60, 64}, recordedPitchesIn(t, st, "session-2"))

	keys, err := st.ReadKeys(ctx, "session-2")
	require.NoError(t, err)
	assert.Equal(t, []ir.KeyEvent{
		{SessionID: "session-2", Seq: 1, Tick: 2, Kind: ir.KeyOn, Pitch: 60},
		{SessionID: "session-2", Seq: 2, Tick: 2, Kind: ir.KeyOn, Pitch: 64},
	}, keys)

	for _, id := range []string{"session-1", "session-2"} {
		report, err := st.Replay(ctx, id, rerun)
		require.NoError(t, err)
		assert.True(t, report.Match(), "%s diverged: %v", id, report.Diffs)
	}
}

// sequenceGenerator hands out session-1, session-2, ...
type sequenceGenerator struct {
	n int
}

func (g *sequenceGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("session-%d", g.n)
}
