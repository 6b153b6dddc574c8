package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_Frozen(t *testing.T) {
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c := NewClock(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now())
}

func TestClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c := NewClock(start)

	assert.Equal(t, start.Add(time.Hour), c.Advance(time.Hour))
	assert.Equal(t, start.Add(time.Hour), c.Now())

	earlier := start.Add(-24 * time.Hour)
	c.Set(earlier)
	assert.Equal(t, earlier, c.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock(time.Unix(0, 0).UTC())
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(goroutines, 0).UTC(), c.Now())
}

func TestStaticID(t *testing.T) {
	assert.Equal(t, "test-id-default", NewStaticID("").Generate())
	g := NewStaticID("snap-1")
	assert.Equal(t, "snap-1", g.Generate())
	assert.Equal(t, "snap-1", g.Generate())
}
