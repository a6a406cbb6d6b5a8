// Package harness runs scenario files against patches and checks what they play.
//
// A scenario names a patch, the triggers to deliver and assertions over the
// notes, control changes and failed events that come out. Every run records
// into a fresh in-memory store under a fixed session id, so a scenario plays
// the same notes on every run and its trace can be compared to a golden file.
//
// # Scenario Format
//
//	name: arpeggio_walk
//	description: "Walks a three-note arpeggio and wraps"
//	patch: ../patches/arpeggio.cue
//	seed: 7
//	events: [0, 1, 2]
//	counter:
//	  count: 32
//	  modulo: 32
//	assertions:
//	  - type: note_count
//	    count: 35
//	  - type: pitches
//	    pitches: [60, 64, 67]
//	  - type: pitches
//	    names: [C4, E4, G4]
//	  - type: pitch_range
//	    min: 60
//	    max: 67
//	  - type: no_errors
//
// The patch path is relative to the scenario file. Explicit events are
// delivered first, then the counter's values 0, 1, 2, ... reduced modulo
// modulo when it is positive.
//
// # Assertion Types
//
//   - note_count: exactly count notes were emitted
//   - control_count: exactly count control changes were emitted
//   - error_count: exactly count events failed
//   - pitches: the first notes have these pitches (numbers or names)
//   - velocities: the first notes have these velocities
//   - pitch_range: every pitch lies in [min, max]
//   - no_errors: no event failed
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/arpeggio.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
