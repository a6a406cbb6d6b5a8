package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tangram/internal/pitch"
)

// Scenario defines one scripted performance of a patch and what it must play.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Patch is the path of the CUE patch to play.
	Patch string `yaml:"patch"`

	// Seed overrides the patch's seed when set.
	Seed *int64 `yaml:"seed,omitempty"`

	// Events are trigger values delivered in order.
	Events []int `yaml:"events,omitempty"`

	// Counter appends a counting trigger stream after Events.
	Counter *Counter `yaml:"counter,omitempty"`

	// Assertions validate the recorded performance.
	Assertions []Assertion `yaml:"assertions"`

	// SessionID is an optional fixed session id.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`
}

// Counter generates Count triggers 0, 1, 2, ... taken modulo Modulo when
// Modulo is positive.
type Counter struct {
	Count  int `yaml:"count"`
	Modulo int `yaml:"modulo,omitempty"`
}

// Values returns the counter's trigger values.
func (c *Counter) Values() []int {
	if c == nil {
		return nil
	}
	values := make([]int, c.Count)
	for i := range values {
		if c.Modulo > 0 {
			values[i] = i % c.Modulo
		} else {
			values[i] = i
		}
	}
	return values
}

// Inputs returns every trigger value the scenario delivers, in order.
func (s *Scenario) Inputs() []int {
	inputs := make([]int, 0, len(s.Events))
	inputs = append(inputs, s.Events...)
	return append(inputs, s.Counter.Values()...)
}

// Assertion validates one property of the recorded performance.
type Assertion struct {
	// Type selects the check: note_count, control_count, error_count,
	// pitches, velocities, pitch_range or no_errors.
	Type string `yaml:"type"`

	// Count is the expected total (note_count, control_count, error_count).
	Count *int `yaml:"count,omitempty"`

	// Pitches are the expected leading pitches (pitches).
	Pitches []int `yaml:"pitches,omitempty"`

	// Names are the expected leading pitches by name, e.g. "C#4" (pitches).
	Names []string `yaml:"names,omitempty"`

	// Velocities are the expected leading velocities (velocities).
	Velocities []int `yaml:"velocities,omitempty"`

	// Min and Max bound every pitch, inclusive (pitch_range).
	Min *int `yaml:"min,omitempty"`
	Max *int `yaml:"max,omitempty"`
}

// Assertion type constants.
const (
	AssertNoteCount    = "note_count"
	AssertControlCount = "control_count"
	AssertErrorCount   = "error_count"
	AssertPitches      = "pitches"
	AssertVelocities   = "velocities"
	AssertPitchRange   = "pitch_range"
	AssertNoErrors     = "no_errors"
)

// LoadScenario reads and parses a scenario YAML file.
// The patch path is resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative patch path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Patch != "" && !filepath.IsAbs(scenario.Patch) && basePath != "" {
		scenario.Patch = filepath.Join(basePath, scenario.Patch)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Patch == "" {
		return fmt.Errorf("patch is required")
	}
	if _, err := os.Stat(s.Patch); os.IsNotExist(err) {
		return fmt.Errorf("patch file not found: %s", s.Patch)
	}

	if s.Counter != nil {
		if s.Counter.Count <= 0 {
			return fmt.Errorf("counter.count must be positive")
		}
		if s.Counter.Modulo < 0 {
			return fmt.Errorf("counter.modulo must be non-negative")
		}
	}

	if len(s.Inputs()) == 0 {
		return fmt.Errorf("events or counter is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNoteCount, AssertControlCount, AssertErrorCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertPitches:
		if len(a.Pitches) == 0 && len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: pitches or names is required for pitches", index)
		}
		if len(a.Pitches) > 0 && len(a.Names) > 0 {
			return fmt.Errorf("assertions[%d]: pitches and names are exclusive", index)
		}
		for _, name := range a.Names {
			if _, err := pitch.Parse(name); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertVelocities:
		if len(a.Velocities) == 0 {
			return fmt.Errorf("assertions[%d]: velocities list is required for velocities", index)
		}
	case AssertPitchRange:
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for pitch_range", index)
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return fmt.Errorf("assertions[%d]: min %d is above max %d", index, *a.Min, *a.Max)
		}
	case AssertNoErrors:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
