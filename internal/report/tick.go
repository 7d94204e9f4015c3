package report

import (
	"fmt"
	"io"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// Ticker prints the one-line per-second progress report.
type Ticker struct {
	w  io.Writer
	st *stats.Statistics
}

// NewTicker builds a progress printer over the shared statistics.
func NewTicker(w io.Writer, st *stats.Statistics) *Ticker {
	return &Ticker{w: w, st: st}
}

// Tick emits the current state: totals in millions, queue depths per
// stage, and the p50 of each latency phase when samples exist.
func (t *Ticker) Tick(elapsedSecs float64) {
	produced := t.st.Produced.Load()
	processed := t.st.Processed.Load()
	delivered := t.st.Delivered.Load()
	lost := t.st.Lost.Load()

	fmt.Fprintf(t.w, "[%.2fs] Produced: %.2fM | Processed: %.2fM | Delivered: %.2fM | Lost: %d\n",
		elapsedSecs,
		float64(produced)/1e6,
		float64(processed)/1e6,
		float64(delivered)/1e6,
		lost,
	)
	fmt.Fprintf(t.w, "        Stage1 Queues: %v | Stage2 Queues: %v\n",
		t.st.Stage1Depths(), t.st.Stage2Depths())

	sums := t.st.Percentiles()
	if sums[stats.PhaseTotal].Count > 0 {
		fmt.Fprintf(t.w, "        Latency p50 (us) - Stage1: %.2f | Process: %.2f | Stage2: %.2f | Total: %.2f\n",
			sums[stats.PhaseStage1].P50,
			sums[stats.PhaseProcessing].P50,
			sums[stats.PhaseStage2].P50,
			sums[stats.PhaseTotal].P50,
		)
	}
}
