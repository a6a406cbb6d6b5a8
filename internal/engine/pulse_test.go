package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recorder collects every value fired into it.
type recorder struct {
	got []int
}

func (r *recorder) Fire(v int) {
	r.got = append(r.got, v)
}

func TestNop_IgnoresEvents(t *testing.T) {
	assert.NotPanics(t, func() { Nop.Fire(3) })
}

func TestPulseFunc(t *testing.T) {
	var got int
	PulseFunc(func(v int) { got = v }).Fire(9)
	assert.Equal(t, 9, got)
}

func TestSprayer_FiresInConstructionOrder(t *testing.T) {
	ctx := NewContext()
	var log []string
	named := func(name string) Pulse {
		return PulseFunc(func(v int) { log = append(log, name) })
	}

	s := NewSprayer(ctx, named("pitch"), named("velocity"), named("emit"))
	s.Fire(1)
	s.Fire(2)

	assert.Equal(t, []string{"pitch", "velocity", "emit", "pitch", "velocity", "emit"}, log)
}

func TestSprayer_DeliversSameValue(t *testing.T) {
	ctx := NewContext()
	a, b := &recorder{}, &recorder{}

	NewSprayer(ctx, a, b).Fire(42)

	assert.Equal(t, []int{42}, a.got)
	assert.Equal(t, []int{42}, b.got)
}

func TestSprayer_NoTargets(t *testing.T) {
	assert.NotPanics(t, func() { NewSprayer(NewContext()).Fire(1) })
}

func TestForwardPulse(t *testing.T) {
	f := NewForwardPulse("fan")
	assert.NotPanics(t, func() { f.Fire(1) })
	assert.Equal(t, "fan", f.Name())

	r := &recorder{}
	f.Bind(r)
	f.Fire(5)
	assert.Equal(t, []int{5}, r.got)
}
