package pipeline

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

func TestProcessorServiceTime(t *testing.T) {
	cfg := config.ProcessorConfig{
		Count:             1,
		ProcessingTimesNs: map[uint8]uint64{0: 500, 3: 2_000},
	}
	p := NewProcessor(0, cfg, spsc.New[Message](8), spsc.New[Message](8), stats.New(1, 1, 1))

	assert.Equal(t, uint64(500), p.serviceTime(0))
	assert.Equal(t, uint64(2_000), p.serviceTime(3))
	assert.Equal(t, uint64(config.DefaultProcessingNs), p.serviceTime(7))
}

func TestProcessorStampsAndForwards(t *testing.T) {
	in := spsc.New[Message](1024)
	out := spsc.New[Message](1024)
	st := stats.New(1, 1, 1)
	cfg := config.ProcessorConfig{
		Count:             1,
		ProcessingTimesNs: map[uint8]uint64{0: 1_000},
	}
	p := NewProcessor(7, cfg, in, out, st)

	const n = 200
	for i := 0; i < n; i++ {
		msg := NewMessage(0, 0, uint64(i))
		msg.Stage1EntryNs = msg.TimestampNs
		msg.Stage1ExitNs = msg.TimestampNs
		require.True(t, in.TryPush(msg))
	}

	var upstreamDone atomic.Bool
	upstreamDone.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(&upstreamDone)
	}()
	<-done

	assert.Equal(t, uint64(n), st.Processed.Load())

	var seq uint64
	for {
		msg, ok := out.TryPop()
		if !ok {
			break
		}
		assert.Equal(t, uint8(7), msg.ProcessorID)
		require.Equal(t, seq, msg.SequenceNumber, "FIFO preserved")
		assert.NotZero(t, msg.ProcessingEntryNs)
		// Busy-wait must hold the message at least its service time.
		assert.GreaterOrEqual(t, msg.ProcessingExitNs-msg.ProcessingEntryNs, uint64(1_000))
		assert.Equal(t, msg.ProcessingExitNs, msg.ProcessingTsNs)
		seq++
	}
	assert.Equal(t, uint64(n), seq)
}

func TestStrategyDeliversAndRecords(t *testing.T) {
	in := spsc.New[Message](1024)
	st := stats.New(1, 1, 2)
	cfg := config.StrategyConfig{
		Count:             2,
		ProcessingTimesNs: map[uint8]uint64{1: 200},
	}
	s := NewStrategy(1, cfg, in, st)
	assert.Equal(t, uint64(200), s.serviceNs)

	const n = 100
	for i := 0; i < n; i++ {
		msg := NewMessage(2, 0, uint64(i))
		msg.Stage1EntryNs = msg.TimestampNs + 100
		msg.Stage1ExitNs = msg.TimestampNs + 200
		msg.ProcessingEntryNs = msg.TimestampNs + 300
		msg.ProcessingExitNs = msg.TimestampNs + 400
		msg.Stage2EntryNs = msg.TimestampNs + 500
		msg.Stage2ExitNs = msg.TimestampNs + 600
		require.True(t, in.TryPush(msg))
	}

	var upstreamDone atomic.Bool
	upstreamDone.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(&upstreamDone)
	}()
	<-done

	assert.Equal(t, uint64(n), st.Delivered.Load())
	assert.Zero(t, st.TotalOrderViolations())
	assert.Equal(t, uint64(n), st.Tracker(0).Received())

	sums := st.Percentiles()
	assert.Equal(t, n, sums[stats.PhaseTotal].Count)
	assert.InDelta(t, 0.6, sums[stats.PhaseTotal].P50, 1e-9)
}

func TestStrategyDefaultServiceTime(t *testing.T) {
	s := NewStrategy(0, config.StrategyConfig{Count: 1}, spsc.New[Message](8), stats.New(1, 1, 1))
	assert.Equal(t, uint64(config.DefaultProcessingNs), s.serviceNs)
}

func TestStrategyDetectsReordering(t *testing.T) {
	in := spsc.New[Message](8)
	st := stats.New(1, 1, 1)
	s := NewStrategy(0, config.StrategyConfig{Count: 1}, in, st)

	require.True(t, in.TryPush(NewMessage(0, 0, 1)))
	require.True(t, in.TryPush(NewMessage(0, 0, 0)))

	var upstreamDone atomic.Bool
	upstreamDone.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(&upstreamDone)
	}()
	<-done

	assert.Equal(t, uint64(1), st.TotalOrderViolations())
}
