package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/config"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/logging"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/monitoring"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/pipeline"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/report"
	"github.com/iBubenok/Multi-Stage-Lock-Free-Message-Router/internal/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	dev := flag.Bool("dev", false, "Development logging (colored console)")
	jsonReport := flag.String("json-report", "", "Write the final report as JSON to this path")
	metricsAddr := flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9100)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <scenario-file>\n", os.Args[0])
		flag.PrintDefaults()
		return 1
	}

	logger, err := logging.New(logging.Config{Level: *logLevel, Development: *dev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		logger.Error("configuration rejected", zap.Error(err))
		return 1
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	runID := uuid.NewString()
	logger.Info("scenario loaded",
		zap.String("run_id", runID),
		zap.String("scenario", cfg.Scenario),
		zap.String("config", flag.Arg(0)),
	)

	st := stats.New(cfg.Producers.Count, cfg.Processors.Count, cfg.Strategies.Count)
	supervisor := pipeline.NewSupervisor(cfg, logger, st)

	ticker := report.NewTicker(os.Stdout, st)
	metrics := monitoring.NewMetrics()
	supervisor.OnTick(func(elapsedSecs float64) {
		ticker.Tick(elapsedSecs)
		metrics.Sync(st)
	})

	if *metricsAddr != "" {
		stop := metrics.Serve(*metricsAddr, logger)
		defer stop()
	}

	// SIGINT/SIGTERM raise the cooperative shutdown flag; no message
	// in flight is abandoned.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		supervisor.Stop()
	}()

	elapsed := supervisor.Run()
	metrics.Sync(st)

	final := report.Build(runID, cfg.Scenario, elapsed, st)
	final.Render(os.Stdout)

	if *jsonReport != "" {
		if err := final.WriteJSON(*jsonReport); err != nil {
			logger.Error("report export failed", zap.Error(err))
			return 1
		}
		logger.Info("report written", zap.String("path", *jsonReport))
	}

	if !final.Passed {
		return 1
	}
	return 0
}
