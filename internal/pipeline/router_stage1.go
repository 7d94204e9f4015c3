package pipeline

import (
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
)

// Stage1Router dispatches producer output to processors. For each
// message type a rule pins a candidate processor set; types with more
// than one candidate are balanced round-robin. The router is the only
// reader of the producer queues and the only writer of the processor
// queues, which keeps every edge strictly SPSC.
type Stage1Router struct {
	// candidates[t] is nil when type t has no rule.
	candidates [config.MaxMsgType + 1][]uint8

	// Round-robin counters are per type so that types sharing
	// candidate processors cycle independently.
	rr [config.MaxMsgType + 1]atomic.Uint64

	inputs  []*spsc.Queue[Message]
	outputs []*spsc.Queue[Message]
}

// NewStage1Router builds the routing table from the configured rules.
func NewStage1Router(rules []config.Stage1Rule, inputs, outputs []*spsc.Queue[Message]) *Stage1Router {
	r := &Stage1Router{
		inputs:  inputs,
		outputs: outputs,
	}
	for _, rule := range rules {
		r.candidates[rule.MsgType] = rule.Processors
	}
	return r
}

// selectProcessor picks the destination for one message. Unruled types
// fall back to type modulo processor count.
func (r *Stage1Router) selectProcessor(msgType uint8) uint8 {
	candidates := r.candidates[msgType]
	if len(candidates) == 0 {
		return msgType % uint8(len(r.outputs))
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	n := r.rr[msgType].Add(1) - 1
	return candidates[n%uint64(len(candidates))]
}

// Run polls the input queues in a fixed cyclic order, popping at most
// one message per queue per pass. Once a message has been extracted it
// is never dropped: the push retries until it lands, past the shutdown
// edge if necessary. Exits when the upstream stage has finished and
// every input queue is empty.
func (r *Stage1Router) Run(upstreamDone *atomic.Bool) {
	for {
		processedAny := false

		for _, in := range r.inputs {
			msg, ok := in.TryPop()
			if !ok {
				continue
			}
			msg.Stage1EntryNs = clock.Now()
			out := r.outputs[r.selectProcessor(msg.MsgType)]

			for {
				// Re-stamped before every attempt so the exit time
				// reflects the successful push, not the first try.
				msg.Stage1ExitNs = clock.Now()
				if out.TryPush(msg) {
					break
				}
				clock.Relax()
			}
			processedAny = true
		}

		if !processedAny {
			if upstreamDone.Load() && r.drained() {
				return
			}
			clock.Relax()
		}
	}
}

func (r *Stage1Router) drained() bool {
	for _, in := range r.inputs {
		if !in.Empty() {
			return false
		}
	}
	return true
}
