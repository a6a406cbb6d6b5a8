package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: arp_walk
description: "Walks the arpeggio and wraps"
patch: arp.cue
counter:
  count: 5
  modulo: 4
assertions:
  - type: pitches
    pitches: [60, 64, 67, 60, 60]
  - type: no_errors
`

const failingScenario = `name: arp_wrong
description: "Expects the wrong first note"
patch: arp.cue
events: [0, 1]
assertions:
  - type: pitches
    names: [D4]
`

// scenarioDir lays out a scenarios directory holding the arpeggio patch and
// the given scenario files.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writePatch(t, dir, "arp.cue", arpeggioPatch)
	for name, src := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, _, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPasses(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"walk.yaml": passingScenario})

	out, _, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arp_walk\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"walk.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ arp_walk")
	assert.Contains(t, out, "✗ arp_wrong")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"walk.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "walk.golden")

	out, _, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arp_walk (golden updated)")
	require.FileExists(t, golden)

	out, _, err = execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arp_walk (golden match)")

	require.NoError(t, os.WriteFile(golden, []byte(`{"stale":true}`), 0644))
	out, _, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandGoldenDirIsNotScanned(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"walk.yaml": passingScenario})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "stray.yaml"), []byte("not: a scenario"), 0644))

	out, _, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
}

func TestTestCommandFilter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"walk.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	out, _, err := execute(t, "", "test", dir, "--filter", "wa*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arp_walk")
	assert.NotContains(t, out, "arp_wrong")

	_, _, err = execute(t, "", "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeScanError)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"typo.yaml": "name: typo\nassertion: []\n"})

	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ typo")
	assert.Contains(t, out, "load error")
}

func TestTestCommandJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"walk.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	out, _, err := execute(t, "", "--format", "json", "test", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenario, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, sr := range resp.Data.Scenarios {
		byName[sr.Name] = sr
	}
	assert.True(t, byName["arp_walk"].Pass)
	assert.False(t, byName["arp_wrong"].Pass)
	assert.NotEmpty(t, byName["arp_wrong"].Errors)
}
