package pipeline

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/clock"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/logging"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/spsc"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

// drainSettle is the pause after all workers join, letting final
// samples land before the report is read.
const drainSettle = 500 * time.Millisecond

// Supervisor owns the pipeline graph: it allocates every queue before
// any worker starts, spawns one OS thread per component, enforces the
// staged drain at shutdown, and is the only thread that ever sleeps.
type Supervisor struct {
	cfg   *config.SystemConfig
	log   *logging.Logger
	stats *stats.Statistics

	producerQueues []*spsc.Queue[Message] // producer[i] -> stage1
	processorIn    []*spsc.Queue[Message] // stage1 -> processor[j]
	processorOut   []*spsc.Queue[Message] // processor[j] -> stage2
	strategyIn     []*spsc.Queue[Message] // stage2 -> strategy[k]

	producers  []*Producer
	stage1     *Stage1Router
	processors []*Processor
	stage2     *Stage2Router
	strategies []*Strategy

	running atomic.Bool
	onTick  func(elapsedSecs float64)
}

// NewSupervisor wires the full graph for a validated configuration.
// Every queue is created here, before any worker spawns, and each one
// is handed to exactly one writer and one reader.
func NewSupervisor(cfg *config.SystemConfig, log *logging.Logger, st *stats.Statistics) *Supervisor {
	s := &Supervisor{
		cfg:   cfg,
		log:   log,
		stats: st,
	}

	s.producerQueues = makeQueues(cfg.Producers.Count)
	s.processorIn = makeQueues(cfg.Processors.Count)
	s.processorOut = makeQueues(cfg.Processors.Count)
	s.strategyIn = makeQueues(cfg.Strategies.Count)

	for i := 0; i < cfg.Producers.Count; i++ {
		s.producers = append(s.producers,
			NewProducer(uint8(i), cfg.Producers, s.producerQueues[i], st))
	}
	s.stage1 = NewStage1Router(cfg.Stage1Rules, s.producerQueues, s.processorIn)
	for i := 0; i < cfg.Processors.Count; i++ {
		s.processors = append(s.processors,
			NewProcessor(uint8(i), cfg.Processors, s.processorIn[i], s.processorOut[i], st))
	}
	s.stage2 = NewStage2Router(cfg.Stage2Rules, s.processorOut, s.strategyIn)
	for i := 0; i < cfg.Strategies.Count; i++ {
		s.strategies = append(s.strategies,
			NewStrategy(uint8(i), cfg.Strategies, s.strategyIn[i], st))
	}

	return s
}

func makeQueues(n int) []*spsc.Queue[Message] {
	queues := make([]*spsc.Queue[Message], n)
	for i := range queues {
		queues[i] = spsc.New[Message](QueueCapacity)
	}
	return queues
}

// OnTick registers the per-second reporting hook.
func (s *Supervisor) OnTick(fn func(elapsedSecs float64)) {
	s.onTick = fn
}

// Stop raises the cooperative shutdown flag. Safe to call from a
// signal handler goroutine; workers finish any in-flight hand-off
// before exiting.
func (s *Supervisor) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.log.Info("shutdown requested")
	}
}

// Run executes the configured scenario to completion and returns the
// measured wall duration in seconds.
//
// Thread layout: P producers + stage1 + N processors + stage2 + K
// strategies, each on its own locked OS thread. Shutdown drains stage
// by stage: a consumer stage exits only after its upstream stage has
// joined and its input queues are empty, so every extracted message
// reaches a strategy.
func (s *Supervisor) Run() float64 {
	s.log.Info("starting pipeline",
		zap.String("scenario", s.cfg.Scenario),
		zap.Uint32("duration_secs", s.cfg.DurationSecs),
		zap.Int("producers", len(s.producers)),
		zap.Int("processors", len(s.processors)),
		zap.Int("strategies", len(s.strategies)),
	)

	s.running.Store(true)

	var producersDone, stage1Done, processorsDone, stage2Done atomic.Bool

	var producerWG sync.WaitGroup
	for _, p := range s.producers {
		producerWG.Add(1)
		go func(p *Producer) {
			defer producerWG.Done()
			runtime.LockOSThread()
			p.Run(&s.running, s.cfg.DurationSecs)
		}(p)
	}

	stage1Join := make(chan struct{})
	go func() {
		defer close(stage1Join)
		runtime.LockOSThread()
		s.stage1.Run(&producersDone)
	}()

	var processorWG sync.WaitGroup
	for _, p := range s.processors {
		processorWG.Add(1)
		go func(p *Processor) {
			defer processorWG.Done()
			runtime.LockOSThread()
			p.Run(&stage1Done)
		}(p)
	}

	stage2Join := make(chan struct{})
	go func() {
		defer close(stage2Join)
		runtime.LockOSThread()
		s.stage2.Run(&processorsDone)
	}()

	var strategyWG sync.WaitGroup
	for _, st := range s.strategies {
		strategyWG.Add(1)
		go func(st *Strategy) {
			defer strategyWG.Done()
			runtime.LockOSThread()
			st.Run(&stage2Done)
		}(st)
	}

	timer := clock.NewTimer()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for elapsed := uint32(0); s.running.Load() && elapsed < s.cfg.DurationSecs; elapsed++ {
		<-ticker.C
		s.sampleDepths()
		if s.onTick != nil {
			s.onTick(timer.ElapsedSeconds())
		}
	}
	s.running.Store(false)

	// Join in spawn order; each done flag releases the next stage's
	// drain check only after its upstream has fully stopped.
	producerWG.Wait()
	producersDone.Store(true)
	<-stage1Join
	stage1Done.Store(true)
	processorWG.Wait()
	processorsDone.Store(true)
	<-stage2Join
	stage2Done.Store(true)
	strategyWG.Wait()

	elapsed := timer.ElapsedSeconds()
	s.sampleDepths()

	time.Sleep(drainSettle)
	s.log.Info("pipeline stopped",
		zap.Float64("elapsed_secs", elapsed),
		zap.Uint64("produced", s.stats.Produced.Load()),
		zap.Uint64("delivered", s.stats.Delivered.Load()),
	)
	return elapsed
}

// sampleDepths refreshes the queue-depth gauges. Only the supervisor
// writes these, once per second.
func (s *Supervisor) sampleDepths() {
	for i, q := range s.processorIn {
		s.stats.SetStage1Depth(i, q.Len())
	}
	for i, q := range s.strategyIn {
		s.stats.SetStage2Depth(i, q.Len())
	}
}
