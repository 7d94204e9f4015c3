package stats

import (
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
)

// OrderTracker detects sequence regressions for one producer.
//
// Each message type slot is written by exactly one strategy thread
// (the stage-2 routing table is a function of type), so plain atomic
// load/store per slot is sufficient. A delivery whose sequence number
// is not strictly greater than the previous one for the same type is
// counted as a violation. The tracker detects reordering; it never
// corrects it.
type OrderTracker struct {
	// last holds sequence+1 per message type; zero means unseen.
	last [config.MaxMsgType + 1]atomic.Uint64

	received   atomic.Uint64
	violations atomic.Uint64
}

// Track records a delivery of (msgType, seq).
func (t *OrderTracker) Track(msgType uint8, seq uint64) {
	t.received.Add(1)

	slot := &t.last[msgType]
	if prev := slot.Load(); prev != 0 && seq+1 <= prev {
		t.violations.Add(1)
	}
	slot.Store(seq + 1)
}

// Received returns the number of deliveries tracked.
func (t *OrderTracker) Received() uint64 {
	return t.received.Load()
}

// Violations returns the number of sequence regressions observed.
func (t *OrderTracker) Violations() uint64 {
	return t.violations.Load()
}

// Ordered reports whether no violation has been observed.
func (t *OrderTracker) Ordered() bool {
	return t.violations.Load() == 0
}
