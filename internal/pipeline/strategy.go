package pipeline

import (
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// Strategy is a terminal consumer. It simulates its own service time,
// then validates ordering and records latency samples. There is no
// output queue.
type Strategy struct {
	id        uint8
	in        *spsc.Queue[Message]
	serviceNs uint64
	stats     *stats.Statistics
}

// NewStrategy builds a strategy reading from its input queue. The
// service time defaults like the processor's when the strategy id has
// no configured entry.
func NewStrategy(id uint8, cfg config.StrategyConfig, in *spsc.Queue[Message], st *stats.Statistics) *Strategy {
	serviceNs := uint64(config.DefaultProcessingNs)
	if ns, ok := cfg.ProcessingTimesNs[id]; ok {
		serviceNs = ns
	}
	return &Strategy{
		id:        id,
		in:        in,
		serviceNs: serviceNs,
		stats:     st,
	}
}

// handle runs the delivery sequence: service time, then order
// tracking, then latency samples, then the delivered counter. The
// order matters: a delivery is counted only after its statistics are
// in place.
func (s *Strategy) handle(msg *Message) {
	clock.BusyWait(s.serviceNs)

	s.stats.TrackOrder(msg.ProducerID, msg.MsgType, msg.SequenceNumber)
	s.stats.RecordLatencies(int(s.id),
		msg.Stage1LatencyUs(),
		msg.ProcessingLatencyUs(),
		msg.Stage2LatencyUs(),
		msg.EndToEndLatencyUs(),
	)
	s.stats.Delivered.Add(1)
}

// Run drains the input queue until the stage-2 router has finished
// and no messages remain.
func (s *Strategy) Run(upstreamDone *atomic.Bool) {
	for {
		msg, ok := s.in.TryPop()
		if !ok {
			if upstreamDone.Load() && s.in.Empty() {
				return
			}
			clock.Relax()
			continue
		}
		s.handle(&msg)
	}
}
