// Package clock provides monotonic nanosecond timestamps and the
// spin primitives used by the pipeline's busy-wait loops.
package clock

import (
	"runtime"
	"time"
)

// epoch anchors every timestamp to a single monotonic reading taken at
// process start. All Now values are comparable across goroutines.
var epoch = time.Now()

// Now returns monotonic nanoseconds elapsed since process start.
func Now() uint64 {
	return uint64(time.Since(epoch))
}

// BusyWait spins until d nanoseconds have elapsed. Sleeping primitives
// cannot hit sub-microsecond targets, so this is an active spin on the
// monotonic clock.
func BusyWait(d uint64) {
	if d == 0 {
		return
	}
	start := Now()
	for Now()-start < d {
	}
}

// Relax hints that the caller is spinning on state owned by another
// thread. Go exposes no PAUSE instruction, so the accepted equivalent
// is a scheduler yield.
func Relax() {
	runtime.Gosched()
}

// Timer measures elapsed time from its creation or last Reset.
type Timer struct {
	start uint64
}

// NewTimer returns a started timer.
func NewTimer() *Timer {
	return &Timer{start: Now()}
}

// Reset restarts the timer.
func (t *Timer) Reset() {
	t.start = Now()
}

// ElapsedNanos returns nanoseconds since start.
func (t *Timer) ElapsedNanos() uint64 {
	return Now() - t.start
}

// ElapsedSeconds returns seconds since start.
func (t *Timer) ElapsedSeconds() float64 {
	return float64(t.ElapsedNanos()) / 1e9
}
