// Package pipeline implements the staged dataflow runtime: producers,
// two routing stages, processors, terminal strategies and the
// supervisor that wires them together with SPSC queues and runs the
// benchmark to completion.
package pipeline

import "github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"

// QueueCapacity is the ring size of every inter-stage queue. Power of
// two, sized generously relative to expected occupancy.
const QueueCapacity = 65536

// Message is the unit of work flowing through the pipeline. It is a
// fixed-size value type so ring-buffer slots copy it wholesale with no
// per-element ownership transfer.
type Message struct {
	MsgType        uint8
	ProducerID     uint8
	ProcessorID    uint8
	SequenceNumber uint64

	// TimestampNs is the creation time; the remaining stamps trace the
	// message through each stage.
	TimestampNs       uint64
	ProcessingTsNs    uint64
	Stage1EntryNs     uint64
	Stage1ExitNs      uint64
	ProcessingEntryNs uint64
	ProcessingExitNs  uint64
	Stage2EntryNs     uint64
	Stage2ExitNs      uint64
}

// NewMessage builds a message stamped with the current monotonic time.
func NewMessage(msgType, producerID uint8, seq uint64) Message {
	return Message{
		MsgType:        msgType,
		ProducerID:     producerID,
		SequenceNumber: seq,
		TimestampNs:    clock.Now(),
	}
}

// spanUs converts a [from,to] nanosecond span to microseconds,
// clamping clock irregularities to zero instead of reporting them as
// errors.
func spanUs(from, to uint64) float64 {
	if to <= from {
		return 0
	}
	return float64(to-from) / 1e3
}

// Stage1LatencyUs is the time spent inside the stage-1 router.
func (m *Message) Stage1LatencyUs() float64 {
	return spanUs(m.Stage1EntryNs, m.Stage1ExitNs)
}

// ProcessingLatencyUs is the time spent inside the processor.
func (m *Message) ProcessingLatencyUs() float64 {
	return spanUs(m.ProcessingEntryNs, m.ProcessingExitNs)
}

// Stage2LatencyUs is the time spent inside the stage-2 router.
func (m *Message) Stage2LatencyUs() float64 {
	return spanUs(m.Stage2EntryNs, m.Stage2ExitNs)
}

// EndToEndLatencyUs is the full creation-to-stage2-exit interval.
func (m *Message) EndToEndLatencyUs() float64 {
	return spanUs(m.TimestampNs, m.Stage2ExitNs)
}
