package pipeline

import (
	"sync/atomic"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
)

// Stage2Router dispatches processed messages to their terminal
// strategy. Each type maps to exactly one strategy; the rule's
// ordering_required flag is recorded and exposed by OrderingRequired,
// but ordering is enforced only as a delivery-time check, never by
// re-sequencing.
type Stage2Router struct {
	// strategy[t] is the destination for type t, -1 when unruled.
	strategy [config.MaxMsgType + 1]int16

	// orderingRequired mirrors the rule flags; read via OrderingRequired.
	orderingRequired [config.MaxMsgType + 1]bool

	inputs  []*spsc.Queue[Message]
	outputs []*spsc.Queue[Message]
}

// NewStage2Router builds the routing table from the configured rules.
func NewStage2Router(rules []config.Stage2Rule, inputs, outputs []*spsc.Queue[Message]) *Stage2Router {
	r := &Stage2Router{
		inputs:  inputs,
		outputs: outputs,
	}
	for i := range r.strategy {
		r.strategy[i] = -1
	}
	for _, rule := range rules {
		r.strategy[rule.MsgType] = int16(rule.Strategy)
		r.orderingRequired[rule.MsgType] = rule.OrderingRequired
	}
	return r
}

// selectStrategy resolves the terminal strategy for one message type,
// falling back to type modulo strategy count when no rule matches.
func (r *Stage2Router) selectStrategy(msgType uint8) uint8 {
	if id := r.strategy[msgType]; id >= 0 {
		return uint8(id)
	}
	return msgType % uint8(len(r.outputs))
}

// OrderingRequired reports the rule flag recorded for a message type.
func (r *Stage2Router) OrderingRequired(msgType uint8) bool {
	return r.orderingRequired[msgType]
}

// Run mirrors the stage-1 loop: cyclic polling, one pop per queue per
// pass, entry/exit stamps, and the no-drop retry discipline on push.
func (r *Stage2Router) Run(upstreamDone *atomic.Bool) {
	for {
		processedAny := false

		for _, in := range r.inputs {
			msg, ok := in.TryPop()
			if !ok {
				continue
			}
			msg.Stage2EntryNs = clock.Now()
			out := r.outputs[r.selectStrategy(msg.MsgType)]

			for {
				msg.Stage2ExitNs = clock.Now()
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

func (r *Stage2Router) drained() bool {
	for _, in := range r.inputs {
		if !in.Empty() {
			return false
		}
	}
	return true
}
