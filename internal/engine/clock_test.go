package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Stamp(), "new clock should start at 0")
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, int64(100), c.Stamp(), "clock should start at specified value")
}

func TestClock_Tick_Incrementing(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Tick())
	assert.Equal(t, int64(2), c.Tick())
	assert.Equal(t, int64(3), c.Tick())

	assert.Equal(t, int64(3), c.Stamp())
}

func TestClock_Stamp_DoesNotIncrement(t *testing.T) {
	c := NewClock()
	c.Tick()
	c.Tick()

	assert.Equal(t, int64(2), c.Stamp())
	assert.Equal(t, int64(2), c.Stamp())
}

func TestClock_ConcurrentReaders(t *testing.T) {
	c := NewClock()
	const readers = 16

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := int64(0)
			for j := 0; j < 100; j++ {
				s := c.Stamp()
				assert.GreaterOrEqual(t, s, last, "stamp must never go backwards")
				last = s
			}
		}()
	}
	for i := 0; i < 100; i++ {
		c.Tick()
	}
	wg.Wait()

	assert.Equal(t, int64(100), c.Stamp())
}
