package local

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestIDAllocator_SameMillisecond(t *testing.T) {
	a := NewIDAllocatorWithClock(fixedClock(1_000))

	seen := make(map[int64]struct{})
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id := a.Next()
		assert.Less(t, id, int64(0))
		if prev != 0 {
			assert.Less(t, id, prev)
		}
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestIDAllocator_FormulaAndClockSkew(t *testing.T) {
	now := int64(5_000)
	a := NewIDAllocatorWithClock(func() time.Time { return time.UnixMilli(now) })

	assert.Equal(t, int64(-5_000), a.Next())
	assert.Equal(t, int64(-5_001), a.Next())

	// Часы ушли назад: ID все равно продолжает убывать
	now = 10
	assert.Equal(t, int64(-5_002), a.Next())

	now = 100_000
	assert.Equal(t, int64(-100_003), a.Next())
	assert.Equal(t, int64(-100_003), a.Last())
}

func TestIDAllocator_Observe(t *testing.T) {
	a := NewIDAllocatorWithClock(fixedClock(1))

	a.Observe(5)
	assert.Equal(t, int64(0), a.Last())

	a.Observe(-500)
	a.Observe(-20)
	assert.Equal(t, int64(-500), a.Last())
	assert.Equal(t, int64(-501), a.Next())
}

func TestIDAllocator_Concurrent(t *testing.T) {
	a := NewIDAllocatorWithClock(fixedClock(42))

	const workers, perWorker = 8, 200
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}
