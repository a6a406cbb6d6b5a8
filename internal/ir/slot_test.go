package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotZeroValueIsRest(t *testing.T) {
	var s Slot
	assert.True(t, s.IsRest())
	assert.Equal(t, Rest, s)

	v, ok := s.Get()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestSlotVal(t *testing.T) {
	s := Val(0)
	assert.False(t, s.IsRest(), "zero is a present value, not a rest")

	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, s.Or(5))
	assert.Equal(t, 5, Rest.Or(5))
}

func TestSeqString(t *testing.T) {
	tests := []struct {
		seq      Seq
		expected string
	}{
		{Seq{}, "[]"},
		{Seq{Val(1), Val(3), Rest, Val(-5)}, "[1 3 . -5]"},
		{Seq{Rest}, "[.]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.seq.String())
	}
}

func TestSeqAtBounds(t *testing.T) {
	seq := Vals(4, 5)
	assert.Equal(t, Val(4), seq.At(0))
	assert.Equal(t, Val(5), seq.At(1))
	assert.Equal(t, Rest, seq.At(2))
	assert.Equal(t, Rest, seq.At(-1))
}

func TestSeqEqual(t *testing.T) {
	assert.True(t, Vals(1, 2).Equal(Seq{Val(1), Val(2)}))
	assert.False(t, Vals(1, 2).Equal(Seq{Val(1), Rest}))
	assert.False(t, Vals(1).Equal(Vals(1, 1)))
	assert.True(t, Seq{}.Equal(nil))
}
