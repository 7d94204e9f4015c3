package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPanicsOnBadCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](1) })
	assert.Panics(t, func() { New[int](100) })
	assert.NotPanics(t, func() { New[int](2) })
	assert.NotPanics(t, func() { New[int](65536) })
}

func TestPushPopSingleThreaded(t *testing.T) {
	q := New[int](8)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 7, q.Cap())

	for i := 0; i < 7; i++ {
		require.True(t, q.TryPush(i), "push %d", i)
	}
	// One slot is sacrificed, the eighth push must fail.
	assert.False(t, q.TryPush(7))
	assert.Equal(t, 7, q.Len())

	for i := 0; i < 7; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
	assert.True(t, q.Empty())
}

func TestWrapAround(t *testing.T) {
	q := New[int](4)
	for round := 0; round < 100; round++ {
		require.True(t, q.TryPush(round))
		require.True(t, q.TryPush(round+1000))
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, round, v)
		v, ok = q.TryPop()
		require.True(t, ok)
		require.Equal(t, round+1000, v)
	}
	assert.True(t, q.Empty())
}

// TestConcurrentOrder pushes a million values through the queue from a
// second goroutine and verifies the consumer sees exactly the inserted
// sequence with nothing lost or duplicated.
func TestConcurrentOrder(t *testing.T) {
	const n = 1_000_000
	q := New[uint64](1024)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; {
			if q.TryPush(i) {
				i++
			}
		}
	}()

	for expect := uint64(0); expect < n; {
		v, ok := q.TryPop()
		if !ok {
			continue
		}
		if v != expect {
			t.Fatalf("popped %d, want %d", v, expect)
		}
		expect++
	}
	wg.Wait()

	_, ok := q.TryPop()
	assert.False(t, ok, "queue should be drained")
}

// TestOccupancyBound verifies Len never exceeds Cap while both
// endpoints run flat out.
func TestOccupancyBound(t *testing.T) {
	const n = 200_000
	q := New[int](64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; {
			if q.TryPush(i) {
				i++
			}
		}
	}()

	popped := 0
	for popped < n {
		if l := q.Len(); l > q.Cap() {
			t.Fatalf("occupancy %d exceeds capacity %d", l, q.Cap())
		}
		if _, ok := q.TryPop(); ok {
			popped++
		}
	}
	<-done
}
