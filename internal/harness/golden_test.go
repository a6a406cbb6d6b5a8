package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangram/internal/ir"
)

func TestRunWithGolden_Arpeggio(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "arpeggio_walk"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_ControlSweep(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "control_sweep"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	r := NewResult()
	r.SessionID = "s"
	r.Seed = 2
	r.Events = []ir.Event{{Tick: 1, Value: 0, Error: "bad"}}
	r.Notes = []ir.Note{{ID: "ignored", Tick: 1, Pitch: 60, Velocity: 90, Duration: 10}}

	data, err := ir.MarshalCanonical(NewTraceSnapshot("snap", r))
	require.NoError(t, err)
	assert.Equal(t,
		`{"controls":[],"events":[{"error":"bad","tick":1,"value":0}],`+
			`"notes":[{"duration":10,"ordinal":0,"pitch":60,"tick":1,"velocity":90}],`+
			`"scenario_name":"snap","seed":2,"session_id":"s"}`,
		string(data))
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "tangram_bars")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := ir.MarshalCanonical(NewTraceSnapshot(s.Name, first))
	require.NoError(t, err)
	b, err := ir.MarshalCanonical(NewTraceSnapshot(s.Name, second))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
