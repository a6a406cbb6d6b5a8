package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/pitch"
)

// AssertionError is returned when an assertion fails.
// It includes the recorded notes to help debug the failure.
type AssertionError struct {
	Type     string    // Assertion type for categorization
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Notes    []ir.Note // Recorded notes for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Notes) > 0 {
		fmt.Fprintf(&buf, "\nNotes:\n")
		for _, n := range e.Notes {
			fmt.Fprintf(&buf, "  [%d.%d] %s vel=%d dur=%d\n",
				n.Tick, n.Ordinal, pitch.Name(n.Pitch), n.Velocity, n.Duration)
		}
	}

	return buf.String()
}

// assertCount checks that got equals the assertion's count.
func assertCount(result *Result, assertion Assertion, what string, got int) error {
	if assertion.Count == nil {
		return fmt.Errorf("%s assertion requires count", assertion.Type)
	}
	if got == *assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%d %s", *assertion.Count, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Notes:    result.Notes,
	}
}

// assertPrefix checks that the leading values of got equal want.
func assertPrefix(result *Result, kind string, want, got []int) error {
	if len(got) < len(want) {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("at least %d notes starting %v", len(want), want),
			Actual:   fmt.Sprintf("%d notes: %v", len(got), got),
			Notes:    result.Notes,
		}
	}
	for i, w := range want {
		if got[i] != w {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%v", want),
				Actual:   fmt.Sprintf("%v (first difference at note %d)", got[:len(want)], i),
				Notes:    result.Notes,
			}
		}
	}
	return nil
}

// assertPitches checks the leading pitches, given as numbers or names.
func assertPitches(result *Result, assertion Assertion) error {
	want := assertion.Pitches
	if len(assertion.Names) > 0 {
		want = make([]int, len(assertion.Names))
		for i, name := range assertion.Names {
			p, err := pitch.Parse(name)
			if err != nil {
				return err
			}
			want[i] = p
		}
	}
	return assertPrefix(result, AssertPitches, want, result.Pitches())
}

// assertPitchRange checks that every pitch lies within [min, max].
func assertPitchRange(result *Result, assertion Assertion) error {
	for _, n := range result.Notes {
		low := assertion.Min != nil && n.Pitch < *assertion.Min
		high := assertion.Max != nil && n.Pitch > *assertion.Max
		if low || high {
			return &AssertionError{
				Type:     AssertPitchRange,
				Expected: fmt.Sprintf("pitches within %s", describeRange(assertion.Min, assertion.Max)),
				Actual:   fmt.Sprintf("pitch %d (%s) at tick %d", n.Pitch, pitch.Name(n.Pitch), n.Tick),
				Notes:    result.Notes,
			}
		}
	}
	return nil
}

func describeRange(lo, hi *int) string {
	bound := func(b *int) string {
		if b == nil {
			return "."
		}
		return fmt.Sprint(*b)
	}
	return fmt.Sprintf("[%s, %s]", bound(lo), bound(hi))
}

// assertNoErrors checks that every event evaluated cleanly.
func assertNoErrors(result *Result) error {
	failed := result.FailedEvents()
	if len(failed) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoErrors,
		Expected: "no failed events",
		Actual:   fmt.Sprintf("%d failed, first at tick %d: %s", len(failed), failed[0].Tick, failed[0].Error),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertNoteCount:
			err = assertCount(result, assertion, "notes", len(result.Notes))
		case AssertControlCount:
			err = assertCount(result, assertion, "control changes", len(result.Controls))
		case AssertErrorCount:
			err = assertCount(result, assertion, "failed events", len(result.FailedEvents()))
		case AssertPitches:
			err = assertPitches(result, assertion)
		case AssertVelocities:
			err = assertPrefix(result, AssertVelocities, assertion.Velocities, result.Velocities())
		case AssertPitchRange:
			err = assertPitchRange(result, assertion)
		case AssertNoErrors:
			err = assertNoErrors(result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
