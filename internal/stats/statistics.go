// Package stats aggregates the pipeline's runtime statistics: message
// counters, queue-depth gauges, per-producer ordering trackers and
// per-phase latency distributions.
//
// Counter updates are relaxed atomics on the hot path. Latency samples
// go through per-strategy mutex shards; percentile computation happens
// only on supervisor reads.
package stats

import "sync/atomic"

// Statistics is the global aggregate shared by every worker. It is
// created once before any worker starts and read fully only after all
// workers have joined.
type Statistics struct {
	Produced  atomic.Uint64
	Processed atomic.Uint64
	Delivered atomic.Uint64
	Lost      atomic.Uint64

	// Depth gauges are written once per second by the supervisor only.
	stage1Depths []atomic.Int64
	stage2Depths []atomic.Int64

	trackers []*OrderTracker
	shards   []*latencyShard
}

// New sizes the aggregate for the configured component counts.
func New(producers, processors, strategies int) *Statistics {
	s := &Statistics{
		stage1Depths: make([]atomic.Int64, processors),
		stage2Depths: make([]atomic.Int64, strategies),
		trackers:     make([]*OrderTracker, producers),
		shards:       make([]*latencyShard, strategies),
	}
	for i := range s.trackers {
		s.trackers[i] = &OrderTracker{}
	}
	for i := range s.shards {
		s.shards[i] = &latencyShard{}
	}
	return s
}

// RecordLatencies appends one sample set from the given strategy, all
// values in microseconds.
func (s *Statistics) RecordLatencies(strategy int, stage1, processing, stage2, total float64) {
	s.shards[strategy].record(stage1, processing, stage2, total)
}

// TrackOrder records a delivery for ordering validation.
func (s *Statistics) TrackOrder(producer, msgType uint8, seq uint64) {
	if int(producer) < len(s.trackers) {
		s.trackers[producer].Track(msgType, seq)
	}
}

// Tracker returns the order tracker for one producer.
func (s *Statistics) Tracker(producer int) *OrderTracker {
	return s.trackers[producer]
}

// Producers returns the number of tracked producers.
func (s *Statistics) Producers() int {
	return len(s.trackers)
}

// SetStage1Depth updates the gauge for one processor input queue.
func (s *Statistics) SetStage1Depth(i, depth int) {
	s.stage1Depths[i].Store(int64(depth))
}

// SetStage2Depth updates the gauge for one strategy input queue.
func (s *Statistics) SetStage2Depth(i, depth int) {
	s.stage2Depths[i].Store(int64(depth))
}

// Stage1Depths returns a snapshot of the processor queue gauges.
func (s *Statistics) Stage1Depths() []int64 {
	out := make([]int64, len(s.stage1Depths))
	for i := range s.stage1Depths {
		out[i] = s.stage1Depths[i].Load()
	}
	return out
}

// Stage2Depths returns a snapshot of the strategy queue gauges.
func (s *Statistics) Stage2Depths() []int64 {
	out := make([]int64, len(s.stage2Depths))
	for i := range s.stage2Depths {
		out[i] = s.stage2Depths[i].Load()
	}
	return out
}

// Percentiles merges all shards and computes the per-phase summaries.
// Expensive: copies and sorts every recorded sample. Supervisor only.
func (s *Statistics) Percentiles() [4]Summary {
	var merged [numPhases][]float64
	for _, shard := range s.shards {
		shard.mu.Lock()
		for p := Phase(0); p < numPhases; p++ {
			merged[p] = append(merged[p], shard.samples[p]...)
		}
		shard.mu.Unlock()
	}

	var out [4]Summary
	for p := Phase(0); p < numPhases; p++ {
		out[p] = summarize(merged[p])
	}
	return out
}

// TotalOrderViolations sums violations across all producers.
func (s *Statistics) TotalOrderViolations() uint64 {
	var total uint64
	for _, t := range s.trackers {
		total += t.Violations()
	}
	return total
}

// Validate reports whether the run ended cleanly: every produced
// message was delivered and no ordering violation was observed.
func (s *Statistics) Validate() bool {
	if s.Produced.Load() != s.Delivered.Load() {
		return false
	}
	for _, t := range s.trackers {
		if !t.Ordered() {
			return false
		}
	}
	return true
}
