package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangram/internal/store"
)

type traceResponse struct {
	Status  string      `json:"status"`
	Data    TraceResult `json:"data"`
	Session string      `json:"session"`
}

func TestTraceLatestSession(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangram.db")
	arp := writePatch(t, dir, "arp.cue", arpeggioPatch)
	recordSession(t, db, arp, "--count", "2")
	latest := recordSession(t, db, arp, "--count", "5", "--modulo", "4")

	out, _, err := execute(t, "", "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Session: "+latest)
	assert.Contains(t, out, "Patch: arpeggio (")
	assert.Contains(t, out, "Seed: 7")
	assert.Contains(t, out, "Events: 5 (0 failed), last tick 5")
	assert.Contains(t, out, "Notes: 5, C4 to G4")
	assert.Contains(t, out, "Notes (5):")
	assert.NotContains(t, out, "Events:\n")
}

func TestTraceFilters(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangram.db")
	arp := writePatch(t, dir, "arp.cue", arpeggioPatch)
	id := recordSession(t, db, arp, "--count", "8", "--modulo", "4")

	tests := []struct {
		name  string
		args  []string
		ticks []int64
	}{
		{"tick range", []string{"--from", "3", "--to", "5"}, []int64{3, 4, 5}},
		{"pitch name", []string{"--pitch", "C4"}, []int64{1, 4, 5, 8}},
		{"pitch number", []string{"--pitch", "67"}, []int64{3, 7}},
		{"limit", []string{"--limit", "2"}, []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "trace", "--db", db, "--session", id}, tt.args...)
			out, _, err := execute(t, "", args...)
			require.NoError(t, err)

			var resp traceResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, id, resp.Session)

			ticks := make([]int64, len(resp.Data.Notes))
			for i, n := range resp.Data.Notes {
				ticks[i] = n.Tick
			}
			assert.Equal(t, tt.ticks, ticks)
			// Stats cover the whole session regardless of filters.
			assert.Equal(t, 8, resp.Data.Stats.Notes)
		})
	}
}

func TestTraceEvents(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangram.db")
	feedback := writePatch(t, dir, "feedback.cue", feedbackPatch)
	id := recordSession(t, db, feedback, "--count", "2")

	out, _, err := execute(t, "", "trace", "--db", db, "--session", id, "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "Events: 2 (2 failed)")
	assert.Equal(t, 2, strings.Count(out, "QUOTA_EXCEEDED"))
	assert.Contains(t, out, "Notes (0):")
}

func TestTraceKeys(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangram.db")
	path := writePatch(t, dir, "keys.cue", keyboardPatch)

	out, _, err := execute(t, "on C4\n0\npanic\n0\n", "--format", "json", "run", path, "--db", db)
	require.NoError(t, err)
	id := decodeRun(t, out).Session

	out, _, err = execute(t, "", "trace", "--db", db, "--session", id, "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "  Keys: 2\n")
	assert.Contains(t, out, "Keys:\n")
	assert.Contains(t, out, "         1  on  C4\n")
	assert.Contains(t, out, "         2  all_off\n")
}

func TestTraceJSONOmitsSource(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangram.db")
	arp := writePatch(t, dir, "arp.cue", arpeggioPatch)
	id := recordSession(t, db, arp, "--count", "3")

	out, _, err := execute(t, "", "--format", "json", "trace", "--db", db, "--events")
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, id, resp.Data.Session.ID)
	assert.Empty(t, resp.Data.Session.PatchSource)
	assert.Len(t, resp.Data.Events, 3)
	assert.Equal(t, store.SessionStats{
		Events:       3,
		Notes:        3,
		LastTick:     3,
		LowestPitch:  60,
		HighestPitch: 67,
	}, resp.Data.Stats)
}

func TestTraceErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.db")
	st, err := store.Open(empty)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing database", []string{"trace", "--db", filepath.Join(dir, "missing.db")}, ErrCodeNotFound},
		{"no sessions", []string{"trace", "--db", empty}, ErrCodeNoSession},
		{"unknown session", []string{"trace", "--db", empty, "--session", "nope"}, ErrCodeNoSession},
		{"bad pitch", []string{"trace", "--db", empty, "--pitch", "X9"}, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantCode)
		})
	}
}
