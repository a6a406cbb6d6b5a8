package ir

import (
	"strconv"
	"strings"
)

// Slot is one element of a chain: an integer or a rest.
//
// The zero value is a rest, so a freshly allocated Seq is all rests.
type Slot struct {
	val int
	ok  bool
}

// Rest is the empty slot.
var Rest = Slot{}

// Val returns a present slot holding v.
func Val(v int) Slot {
	return Slot{val: v, ok: true}
}

// Get returns the slot's value and whether it is present.
func (s Slot) Get() (int, bool) {
	return s.val, s.ok
}

// IsRest reports whether the slot is empty.
func (s Slot) IsRest() bool {
	return !s.ok
}

// Or returns the slot's value, or def for a rest.
func (s Slot) Or(def int) int {
	if !s.ok {
		return def
	}
	return s.val
}

// String renders a rest as "." and a value in decimal.
func (s Slot) String() string {
	if !s.ok {
		return "."
	}
	return strconv.Itoa(s.val)
}

// Seq is an ordered, 0-indexed sequence of slots.
type Seq []Slot

// Vals builds a Seq of present slots.
func Vals(vs ...int) Seq {
	seq := make(Seq, len(vs))
	for i, v := range vs {
		seq[i] = Val(v)
	}
	return seq
}

// At returns the slot at i, or a rest when i is out of bounds.
func (s Seq) At(i int) Slot {
	if i < 0 || i >= len(s) {
		return Rest
	}
	return s[i]
}

// Equal reports whether two sequences hold the same slots in order.
func (s Seq) Equal(other Seq) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the sequence as "[1 3 . -5]".
func (s Seq) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, slot := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(slot.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Canonical returns the canonical JSON form: an array of ints with null rests.
func (s Seq) Canonical() any {
	out := make([]any, len(s))
	for i, slot := range s {
		if v, ok := slot.Get(); ok {
			out[i] = v
		}
	}
	return out
}
