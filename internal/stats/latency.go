package stats

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Phase identifies one measured latency segment.
type Phase int

const (
	PhaseStage1 Phase = iota
	PhaseProcessing
	PhaseStage2
	PhaseTotal
	numPhases
)

// String returns the report label for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStage1:
		return "Stage1"
	case PhaseProcessing:
		return "Process"
	case PhaseStage2:
		return "Stage2"
	case PhaseTotal:
		return "Total"
	}
	return "?"
}

// latencyShard collects samples from a single strategy. Sharding keeps
// delivery threads off each other's mutex; shards are merged when the
// supervisor reads the distribution.
type latencyShard struct {
	mu      sync.Mutex
	samples [numPhases][]float64
}

// record appends one sample per phase, all in microseconds.
func (s *latencyShard) record(stage1, processing, stage2, total float64) {
	s.mu.Lock()
	s.samples[PhaseStage1] = append(s.samples[PhaseStage1], stage1)
	s.samples[PhaseProcessing] = append(s.samples[PhaseProcessing], processing)
	s.samples[PhaseStage2] = append(s.samples[PhaseStage2], stage2)
	s.samples[PhaseTotal] = append(s.samples[PhaseTotal], total)
	s.mu.Unlock()
}

// Summary holds the percentile read-out for one phase, microseconds.
type Summary struct {
	Count int
	P50   float64
	P90   float64
	P99   float64
	P999  float64
	Max   float64
}

// summarize sorts samples in place and computes the percentile set.
func summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sort.Float64s(samples)
	return Summary{
		Count: len(samples),
		P50:   stat.Quantile(0.50, stat.Empirical, samples, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, samples, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, samples, nil),
		P999:  stat.Quantile(0.999, stat.Empirical, samples, nil),
		Max:   samples[len(samples)-1],
	}
}
