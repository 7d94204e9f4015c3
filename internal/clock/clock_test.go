package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowMonotonic(t *testing.T) {
	a := Now()
	b := Now()
	assert.GreaterOrEqual(t, b, a)
}

func TestBusyWait(t *testing.T) {
	start := Now()
	BusyWait(100_000) // 100 µs
	elapsed := Now() - start
	require.GreaterOrEqual(t, elapsed, uint64(100_000))
	// Generous upper bound so a loaded CI machine does not flake.
	assert.Less(t, elapsed, uint64(100*time.Millisecond))
}

func TestBusyWaitZero(t *testing.T) {
	start := Now()
	BusyWait(0)
	assert.Less(t, Now()-start, uint64(time.Millisecond))
}

func TestTimer(t *testing.T) {
	tm := NewTimer()
	BusyWait(50_000)
	assert.GreaterOrEqual(t, tm.ElapsedNanos(), uint64(50_000))
	assert.Greater(t, tm.ElapsedSeconds(), 0.0)

	tm.Reset()
	assert.Less(t, tm.ElapsedNanos(), uint64(time.Second))
}
