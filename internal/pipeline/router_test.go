package pipeline

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
)

func smallQueues(n int) []*spsc.Queue[Message] {
	queues := make([]*spsc.Queue[Message], n)
	for i := range queues {
		queues[i] = spsc.New[Message](1024)
	}
	return queues
}

func TestSelectProcessorSingleCandidate(t *testing.T) {
	r := NewStage1Router(
		[]config.Stage1Rule{{MsgType: 0, Processors: []uint8{2}}},
		smallQueues(1), smallQueues(4))

	for i := 0; i < 10; i++ {
		assert.Equal(t, uint8(2), r.selectProcessor(0))
	}
}

func TestSelectProcessorRoundRobin(t *testing.T) {
	r := NewStage1Router(
		[]config.Stage1Rule{{MsgType: 1, Processors: []uint8{0, 2, 3}}},
		smallQueues(1), smallQueues(4))

	got := []uint8{
		r.selectProcessor(1), r.selectProcessor(1), r.selectProcessor(1),
		r.selectProcessor(1), r.selectProcessor(1), r.selectProcessor(1),
	}
	assert.Equal(t, []uint8{0, 2, 3, 0, 2, 3}, got)
}

func TestRoundRobinCountersPerType(t *testing.T) {
	// Two types sharing candidates must cycle independently.
	r := NewStage1Router(
		[]config.Stage1Rule{
			{MsgType: 0, Processors: []uint8{0, 1}},
			{MsgType: 1, Processors: []uint8{0, 1}},
		},
		smallQueues(1), smallQueues(2))

	assert.Equal(t, uint8(0), r.selectProcessor(0))
	assert.Equal(t, uint8(0), r.selectProcessor(1))
	assert.Equal(t, uint8(1), r.selectProcessor(0))
	assert.Equal(t, uint8(1), r.selectProcessor(1))
}

func TestSelectProcessorFallback(t *testing.T) {
	r := NewStage1Router(nil, smallQueues(1), smallQueues(3))
	assert.Equal(t, uint8(0), r.selectProcessor(0))
	assert.Equal(t, uint8(1), r.selectProcessor(1))
	assert.Equal(t, uint8(2), r.selectProcessor(5)) // 5 mod 3
}

func TestSelectStrategy(t *testing.T) {
	r := NewStage2Router(
		[]config.Stage2Rule{
			{MsgType: 0, Strategy: 2, OrderingRequired: true},
			{MsgType: 1, Strategy: 0, OrderingRequired: false},
		},
		smallQueues(1), smallQueues(3))

	assert.Equal(t, uint8(2), r.selectStrategy(0))
	assert.Equal(t, uint8(0), r.selectStrategy(1))
	assert.Equal(t, uint8(2), r.selectStrategy(5)) // unruled: 5 mod 3
	assert.True(t, r.OrderingRequired(0))
	assert.False(t, r.OrderingRequired(1))
	assert.False(t, r.OrderingRequired(5))
}

func TestStage1RouterForwardsAndStamps(t *testing.T) {
	inputs := smallQueues(2)
	outputs := smallQueues(2)
	r := NewStage1Router(
		[]config.Stage1Rule{
			{MsgType: 0, Processors: []uint8{0}},
			{MsgType: 1, Processors: []uint8{1}},
		},
		inputs, outputs)

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, inputs[i%2].TryPush(NewMessage(uint8(i%2), uint8(i%2), uint64(i/2))))
	}

	var upstreamDone atomic.Bool
	upstreamDone.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(&upstreamDone)
	}()
	<-done

	for typ := 0; typ < 2; typ++ {
		count := 0
		var lastSeq uint64
		for {
			msg, ok := outputs[typ].TryPop()
			if !ok {
				break
			}
			assert.Equal(t, uint8(typ), msg.MsgType)
			assert.NotZero(t, msg.Stage1EntryNs)
			assert.GreaterOrEqual(t, msg.Stage1ExitNs, msg.Stage1EntryNs)
			if count > 0 {
				assert.Greater(t, msg.SequenceNumber, lastSeq)
			}
			lastSeq = msg.SequenceNumber
			count++
		}
		assert.Equal(t, n/2, count, "type %d", typ)
	}
}

func TestStage2RouterForwardsAndStamps(t *testing.T) {
	inputs := smallQueues(1)
	outputs := smallQueues(2)
	r := NewStage2Router(
		[]config.Stage2Rule{{MsgType: 0, Strategy: 1, OrderingRequired: true}},
		inputs, outputs)

	const n = 50
	for i := 0; i < n; i++ {
		require.True(t, inputs[0].TryPush(NewMessage(0, 0, uint64(i))))
	}

	var upstreamDone atomic.Bool
	upstreamDone.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(&upstreamDone)
	}()
	<-done

	assert.True(t, outputs[0].Empty())
	count := 0
	for {
		msg, ok := outputs[1].TryPop()
		if !ok {
			break
		}
		assert.NotZero(t, msg.Stage2EntryNs)
		assert.GreaterOrEqual(t, msg.Stage2ExitNs, msg.Stage2EntryNs)
		count++
	}
	assert.Equal(t, n, count)
}

// TestRouterDrainsAfterShutdown verifies the no-loss discipline: every
// message extracted before or after the shutdown edge still reaches an
// output queue.
func TestRouterDrainsAfterShutdown(t *testing.T) {
	inputs := smallQueues(1)
	outputs := smallQueues(1)
	r := NewStage1Router(
		[]config.Stage1Rule{{MsgType: 0, Processors: []uint8{0}}},
		inputs, outputs)

	var upstreamDone atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(&upstreamDone)
	}()

	const n = 500
	for i := 0; i < n; i++ {
		for !inputs[0].TryPush(NewMessage(0, 0, uint64(i))) {
		}
	}
	upstreamDone.Store(true)
	<-done

	drained := 0
	for {
		if _, ok := outputs[0].TryPop(); !ok {
			break
		}
		drained++
	}
	assert.Equal(t, n, drained)
	assert.True(t, inputs[0].Empty())
}
