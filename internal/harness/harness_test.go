package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tangram/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_Arpeggio(t *testing.T) {
	result, err := Run(loadTestScenario(t, "arpeggio_walk"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "test-session-default", result.SessionID)
	assert.Equal(t, int64(7), result.Seed)
	assert.Equal(t, []int{60, 64, 67, 60, 60}, result.Pitches())
	require.Len(t, result.Events, 5)
	assert.Equal(t, ir.Event{SessionID: "test-session-default", Tick: 4, Value: 3}, result.Events[3])
}

func TestRun_NotesCarryIDs(t *testing.T) {
	result, err := Run(loadTestScenario(t, "arpeggio_walk"))
	require.NoError(t, err)

	for _, n := range result.Notes {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, "test-session-default", n.SessionID)
	}
}

func TestRun_ControlChanges(t *testing.T) {
	result, err := Run(loadTestScenario(t, "control_sweep"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Controls, 3)
	assert.Equal(t, int64(3), result.Controls[1].Tick)
	assert.Equal(t, 127, result.Controls[1].Value)
}

func TestRun_FailedEventsAreRecorded(t *testing.T) {
	result, err := Run(loadTestScenario(t, "feedback_loop"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	failed := result.FailedEvents()
	require.Len(t, failed, 3)
	for _, e := range failed {
		assert.Contains(t, e.Error, "QUOTA_EXCEEDED")
	}
}

func TestRun_Tangram(t *testing.T) {
	result, err := Run(loadTestScenario(t, "tangram_bars"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotEmpty(t, result.Notes)
}

func TestRun_SeedOverrideIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "tangram_bars")
	seed := int64(99)
	s.Seed = &seed

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, int64(99), first.Seed)
	assert.Equal(t, first.Notes, second.Notes)
}

func TestRun_FailingAssertion(t *testing.T) {
	s := loadTestScenario(t, "arpeggio_walk")
	count := 4
	s.Assertions = []Assertion{{Type: AssertNoteCount, Count: &count}}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: 4 notes")
	assert.Contains(t, result.Errors[0], "Actual: 5 notes")
}

func TestRun_CustomSessionID(t *testing.T) {
	s := loadTestScenario(t, "control_sweep")
	s.SessionID = "sweep-1"

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "sweep-1", result.SessionID)
	assert.Equal(t, "sweep-1", result.Controls[0].SessionID)
}

func TestRun_MissingPatch(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Patch: "testdata/patches/missing.cue"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read patch")
}

func TestRun_AllScenariosPass(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
