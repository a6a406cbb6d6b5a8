package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tangram/internal/ir"
)

// TraceSnapshot captures the recorded performance of a scenario.
// Note IDs are left out: they are derived from the other fields.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	SessionID    string       `json:"session_id"`
	Seed         int64        `json:"seed"`
	Events       []ir.Event   `json:"events"`
	Notes        []ir.Note    `json:"notes"`
	Controls     []ir.Control `json:"controls"`
}

// NewTraceSnapshot builds the snapshot of result under name.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		SessionID:    result.SessionID,
		Seed:         result.Seed,
		Events:       result.Events,
		Notes:        result.Notes,
		Controls:     result.Controls,
	}
}

// Canonical converts a TraceSnapshot to its canonical JSON shape.
func (s TraceSnapshot) Canonical() any {
	events := make([]any, len(s.Events))
	for i, e := range s.Events {
		m := map[string]any{"tick": e.Tick, "value": e.Value}
		if e.Error != "" {
			m["error"] = e.Error
		}
		events[i] = m
	}

	notes := make([]any, len(s.Notes))
	for i, n := range s.Notes {
		notes[i] = map[string]any{
			"tick":     n.Tick,
			"ordinal":  n.Ordinal,
			"pitch":    n.Pitch,
			"velocity": n.Velocity,
			"duration": n.Duration,
		}
	}

	controls := make([]any, len(s.Controls))
	for i, c := range s.Controls {
		controls[i] = map[string]any{
			"tick":    c.Tick,
			"ordinal": c.Ordinal,
			"number":  c.Number,
			"value":   c.Value,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session_id":    s.SessionID,
		"seed":          s.Seed,
		"events":        events,
		"notes":         notes,
		"controls":      controls,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := ir.MarshalCanonical(NewTraceSnapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
