package pipeline

import (
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// typePicker draws message types from a discrete distribution via a
// cumulative-probability walk.
type typePicker struct {
	types      []uint8
	cumulative []float64
	rng        *rand.Rand
}

func newTypePicker(distribution map[uint8]float64, seed uint64) *typePicker {
	types := make([]uint8, 0, len(distribution))
	for t := range distribution {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	cumulative := make([]float64, len(types))
	sum := 0.0
	for i, t := range types {
		sum += distribution[t]
		cumulative[i] = sum
	}

	return &typePicker{
		types:      types,
		cumulative: cumulative,
		rng:        rand.New(rand.NewPCG(seed, clock.Now())),
	}
}

// pick returns a type with probability proportional to its weight.
func (p *typePicker) pick() uint8 {
	if len(p.types) == 1 {
		return p.types[0]
	}
	x := p.rng.Float64() * p.cumulative[len(p.cumulative)-1]
	for i, c := range p.cumulative {
		if x < c {
			return p.types[i]
		}
	}
	return p.types[len(p.types)-1]
}

// Producer emits messages at a fixed target rate with sequence numbers
// 0,1,2,... in strict order.
type Producer struct {
	id     uint8
	rate   uint64
	out    *spsc.Queue[Message]
	stats  *stats.Statistics
	picker *typePicker
	seq    uint64
}

// NewProducer builds a producer for the given output queue.
func NewProducer(id uint8, cfg config.ProducerConfig, out *spsc.Queue[Message], st *stats.Statistics) *Producer {
	return &Producer{
		id:     id,
		rate:   cfg.MessagesPerSec,
		out:    out,
		stats:  st,
		picker: newTypePicker(cfg.Distribution, uint64(id)+1),
	}
}

// Run is the producer thread body. The pacer advances a deterministic
// deadline by interval_ns per emission; when it falls behind wall time
// it clamps to now rather than bursting to catch up. Queue-full is
// backpressure, not an error: the push retries while the system runs.
// Exits when the shutdown flag clears or the run duration elapses.
func (p *Producer) Run(running *atomic.Bool, durationSecs uint32) {
	intervalNs := uint64(1e9) / p.rate
	durationNs := uint64(durationSecs) * 1e9

	timer := clock.NewTimer()
	var nextSend uint64

	for running.Load() {
		now := timer.ElapsedNanos()
		if now >= durationNs {
			break
		}
		if now < nextSend {
			clock.Relax()
			continue
		}

		msg := NewMessage(p.picker.pick(), p.id, p.seq)
		p.seq++

		for running.Load() {
			if p.out.TryPush(msg) {
				p.stats.Produced.Add(1)
				break
			}
			clock.Relax()
		}

		nextSend += intervalNs
		if nextSend < now {
			nextSend = now
		}
	}
}
