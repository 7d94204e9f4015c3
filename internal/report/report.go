// Package report renders the pipeline's statistics: the per-second
// tick line during a run and the final summary once all workers have
// joined. The final report can also be exported as JSON.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// PhaseReport is the percentile read-out for one latency phase, in
// microseconds.
type PhaseReport struct {
	Phase string  `json:"phase"`
	Count int     `json:"count"`
	P50   float64 `json:"p50_us"`
	P90   float64 `json:"p90_us"`
	P99   float64 `json:"p99_us"`
	P999  float64 `json:"p999_us"`
	Max   float64 `json:"max_us"`
}

// ProducerReport summarizes delivery and ordering for one producer.
type ProducerReport struct {
	ID         int    `json:"id"`
	Received   uint64 `json:"received"`
	Violations uint64 `json:"order_violations"`
	Ordered    bool   `json:"ordered"`
}

// Report is the final run summary.
type Report struct {
	RunID        string  `json:"run_id"`
	Scenario     string  `json:"scenario"`
	DurationSecs float64 `json:"duration_secs"`

	Produced  uint64 `json:"produced"`
	Processed uint64 `json:"processed"`
	Delivered uint64 `json:"delivered"`
	Lost      uint64 `json:"lost"`

	// ThroughputM is delivered messages per second, in millions.
	ThroughputM float64 `json:"throughput_m_msg_per_sec"`

	Phases    []PhaseReport    `json:"phases"`
	Producers []ProducerReport `json:"producers"`
	Passed    bool             `json:"passed"`
}

// Build assembles the final report from the statistics aggregate.
// Call only after every worker has joined.
func Build(runID, scenario string, elapsedSecs float64, st *stats.Statistics) *Report {
	r := &Report{
		RunID:        runID,
		Scenario:     scenario,
		DurationSecs: elapsedSecs,
		Produced:     st.Produced.Load(),
		Processed:    st.Processed.Load(),
		Delivered:    st.Delivered.Load(),
		Lost:         st.Lost.Load(),
		Passed:       st.Validate(),
	}
	if elapsedSecs > 0 {
		r.ThroughputM = float64(r.Delivered) / elapsedSecs / 1e6
	}

	for phase, sum := range st.Percentiles() {
		r.Phases = append(r.Phases, PhaseReport{
			Phase: stats.Phase(phase).String(),
			Count: sum.Count,
			P50:   sum.P50,
			P90:   sum.P90,
			P99:   sum.P99,
			P999:  sum.P999,
			Max:   sum.Max,
		})
	}

	for i := 0; i < st.Producers(); i++ {
		tracker := st.Tracker(i)
		r.Producers = append(r.Producers, ProducerReport{
			ID:         i,
			Received:   tracker.Received(),
			Violations: tracker.Violations(),
			Ordered:    tracker.Ordered(),
		})
	}
	return r
}

// Render writes the human-readable final report.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "\n=== FINAL REPORT ===\n")
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Duration: %.2f seconds\n\n", r.DurationSecs)

	fmt.Fprintf(w, "Messages:\n")
	fmt.Fprintf(w, "  Produced:  %15s\n", groupDigits(r.Produced))
	fmt.Fprintf(w, "  Processed: %15s\n", groupDigits(r.Processed))
	fmt.Fprintf(w, "  Delivered: %15s\n", groupDigits(r.Delivered))
	fmt.Fprintf(w, "  Lost:      %15s\n\n", groupDigits(r.Lost))

	fmt.Fprintf(w, "Throughput: %.2f M msg/sec\n\n", r.ThroughputM)

	if len(r.Phases) > 0 && r.Phases[len(r.Phases)-1].Count > 0 {
		fmt.Fprintf(w, "Latency percentiles (microseconds):\n")
		fmt.Fprintf(w, "  %-10s %7s %8s %8s %8s %8s\n", "Phase", "p50", "p90", "p99", "p99.9", "max")
		for _, p := range r.Phases {
			fmt.Fprintf(w, "  %-10s %7.2f %8.2f %8.2f %8.2f %8.2f\n",
				p.Phase, p.P50, p.P90, p.P99, p.P999, p.Max)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Message ordering:\n")
	for _, p := range r.Producers {
		if p.Ordered {
			fmt.Fprintf(w, "  Producer %d: %s messages - ORDERED\n", p.ID, groupDigits(p.Received))
		} else {
			fmt.Fprintf(w, "  Producer %d: %s messages - VIOLATIONS: %d\n", p.ID, groupDigits(p.Received), p.Violations)
		}
	}

	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(w, "\nResult: %s\n", verdict)
}

// WriteJSON exports the report to a file.
func (r *Report) WriteJSON(path string) error {
	data, err := sonic.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// groupDigits formats n with comma thousands separators.
func groupDigits(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
