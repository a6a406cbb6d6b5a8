package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while evaluating a network.
//
// Runtime errors include:
//   - Cyclic dependency: a chain was re-entered while computing itself
//   - Quota exceeded: pulses fired more often in one tick than allowed
//
// Evaluation raises a RuntimeError by panicking with it; the Driver recovers it,
// abandons the current event and returns the error. The network stays usable
// for the next tick.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Stamp is the tick during which the error occurred.
	Stamp int64

	// Chain names the chain kind involved (for cycle errors).
	Chain string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCyclicDependency indicates a chain depends on itself.
	ErrCodeCyclicDependency RuntimeErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeQuotaExceeded indicates the per-tick firing quota was exceeded.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Chain != "" {
		return fmt.Sprintf("%s: %s (tick=%d, chain=%s)", e.Code, e.Message, e.Stamp, e.Chain)
	}
	return fmt.Sprintf("%s: %s (tick=%d)", e.Code, e.Message, e.Stamp)
}

// IsCycleError returns true if the error is a cyclic dependency error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCyclicDependency
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	return false
}

// NewCycleError creates a RuntimeError for a chain re-entered during its own compute.
func NewCycleError(stamp int64, kind string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCyclicDependency,
		Message: "chain re-entered while computing its own sequence",
		Stamp:   stamp,
		Chain:   kind,
	}
}

// NewQuotaError creates a RuntimeError for an exceeded firing quota.
func NewQuotaError(stamp int64, fires, maxFires int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("tick exceeded max pulse fires (%d > %d)", fires, maxFires),
		Stamp:   stamp,
		Details: map[string]string{
			"fires":     fmt.Sprintf("%d", fires),
			"max_fires": fmt.Sprintf("%d", maxFires),
		},
	}
}

// Evaluate runs fn and converts a RuntimeError panic raised during
// evaluation into a returned error. Other panics propagate unchanged.
//
// Use it when reading chains or firing pulses outside a Driver.
func Evaluate(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*RuntimeError)
			if !ok {
				panic(r)
			}
			err = re
		}
	}()
	fn()
	return nil
}

// LiteralError reports a raw value that cannot be turned into a chain.
type LiteralError struct {
	// Code is ErrCodeMalformedLiteral or ErrCodeUnsupportedLiteral.
	Code string

	// Literal is the offending string, or a description of the offending value.
	Literal string
}

// Literal error codes.
const (
	// ErrCodeMalformedLiteral indicates a string with a character outside {0-9, .}.
	ErrCodeMalformedLiteral = "MALFORMED_LITERAL"

	// ErrCodeUnsupportedLiteral indicates a Go value that is not a literal at all.
	ErrCodeUnsupportedLiteral = "UNSUPPORTED_LITERAL"
)

// Error implements the error interface.
func (e *LiteralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Literal)
}

// IsMalformedLiteral returns true if the error is a malformed literal string.
// Uses errors.As to handle wrapped errors.
func IsMalformedLiteral(err error) bool {
	var le *LiteralError
	if errors.As(err, &le) {
		return le.Code == ErrCodeMalformedLiteral
	}
	return false
}
