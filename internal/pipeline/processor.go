package pipeline

import (
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// Processor simulates per-type service time on messages flowing from
// the stage-1 router to the stage-2 router. The service delay is an
// active spin: sleep primitives cannot resolve the nanosecond targets
// being modeled.
type Processor struct {
	id    uint8
	in    *spsc.Queue[Message]
	out   *spsc.Queue[Message]
	times map[uint8]uint64
	stats *stats.Statistics
}

// NewProcessor builds a processor between its two queues.
func NewProcessor(id uint8, cfg config.ProcessorConfig, in, out *spsc.Queue[Message], st *stats.Statistics) *Processor {
	return &Processor{
		id:    id,
		in:    in,
		out:   out,
		times: cfg.ProcessingTimesNs,
		stats: st,
	}
}

// serviceTime returns the configured busy-wait for a type, defaulting
// when the type has no entry.
func (p *Processor) serviceTime(msgType uint8) uint64 {
	if ns, ok := p.times[msgType]; ok {
		return ns
	}
	return config.DefaultProcessingNs
}

// Run stamps entry, applies the service time, stamps exit, and
// forwards with the no-drop retry discipline. Exits when the stage-1
// router has finished and the input queue is empty.
func (p *Processor) Run(upstreamDone *atomic.Bool) {
	for {
		msg, ok := p.in.TryPop()
		if !ok {
			if upstreamDone.Load() && p.in.Empty() {
				return
			}
			clock.Relax()
			continue
		}

		msg.ProcessingEntryNs = clock.Now()
		msg.ProcessorID = p.id
		clock.BusyWait(p.serviceTime(msg.MsgType))
		msg.ProcessingExitNs = clock.Now()
		msg.ProcessingTsNs = msg.ProcessingExitNs

		for {
			if p.out.TryPush(msg) {
				p.stats.Processed.Add(1)
				break
			}
			clock.Relax()
		}
	}
}
