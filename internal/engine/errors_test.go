package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	err := NewCycleError(4, "transposer")
	assert.Equal(t, "CYCLIC_DEPENDENCY: chain re-entered while computing its own sequence (tick=4, chain=transposer)", err.Error())

	q := NewQuotaError(2, 11, 10)
	assert.Equal(t, "QUOTA_EXCEEDED: tick exceeded max pulse fires (11 > 10) (tick=2)", q.Error())
}

func TestIsCycleError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("event 3: %w", NewCycleError(3, "assembler"))

	assert.True(t, IsCycleError(wrapped))
	assert.False(t, IsQuotaError(wrapped))
	assert.False(t, IsCycleError(errors.New("other")))
}

func TestIsQuotaError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", NewQuotaError(1, 2, 1))

	assert.True(t, IsQuotaError(wrapped))
	assert.False(t, IsCycleError(wrapped))
	assert.False(t, IsQuotaError(nil))
}

func TestEvaluate(t *testing.T) {
	assert.NoError(t, Evaluate(func() {}))

	err := Evaluate(func() { panic(NewQuotaError(1, 2, 1)) })
	assert.True(t, IsQuotaError(err))

	assert.Panics(t, func() {
		_ = Evaluate(func() { panic(errors.New("not a runtime error")) })
	})
}

func TestLiteralError_Error(t *testing.T) {
	err := &LiteralError{Code: ErrCodeMalformedLiteral, Literal: "$@"}
	assert.Equal(t, "MALFORMED_LITERAL: $@", err.Error())
	assert.True(t, IsMalformedLiteral(fmt.Errorf("wrap: %w", err)))
}
