package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/api"
	"github.com/VanDung-dev/TaskDrain-Engine/arrow"
	"github.com/VanDung-dev/TaskDrain-Engine/config"
	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/VanDung-dev/TaskDrain-Engine/network"
	"github.com/VanDung-dev/TaskDrain-Engine/scenario"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// referencePause is how long Task 2 of the reference scenario sleeps.
var referencePause = 2 * time.Second

// run wires the engine from cfg, drains one batch of tasks and tears everything down.
func run(cfg *config.Config, stdout, stderr io.Writer) (engine.PoolStats, error) {
	// Log lines and task output share one lock on stdout.
	console := engine.NewWriterSink(stdout)

	logOpts := []engine.LogOption{engine.WithTimeLayout(cfg.TimeLayout)}
	if !cfg.Quiet {
		logOpts = append(logOpts, engine.WithSink(console))
	}
	if cfg.JSONLog {
		handler := slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
		logOpts = append(logOpts, engine.WithSink(engine.NewSlogSink(slog.New(handler))))
	}
	eventLog := engine.NewEventLog(logOpts...)

	var shipper *network.ZmqSink
	if cfg.ZmqEndpoint != "" {
		sink, err := network.DialSink(cfg.NodeID, cfg.ZmqEndpoint)
		if err != nil {
			return engine.PoolStats{}, err
		}
		defer sink.Close()
		eventLog.AddSink(sink)
		shipper = sink
		log.Printf("shipping log lines to %s as %s", cfg.ZmqEndpoint, cfg.NodeID)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := api.NewMetrics("taskengine", reg)

	pool := engine.NewWorkerPool(cfg.Workers, engine.NewTaskQueue(), eventLog,
		engine.WithName(cfg.PoolName),
		engine.WithObserver(metrics),
	)

	if cfg.MetricsAddr != "" {
		srv := api.NewMetricsServer(cfg.MetricsAddr, reg, pool)
		if err := srv.StartAsync(); err != nil {
			return engine.PoolStats{}, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop()
		log.Printf("metrics listening on %s", srv.Addr())
	}

	var health *api.HealthServer
	if cfg.HealthAddr != "" {
		health = api.NewHealthServer()
		if err := health.StartAsync(cfg.HealthAddr); err != nil {
			return engine.PoolStats{}, err
		}
		defer health.Stop()
		health.SetServing(true)
		log.Printf("gRPC health listening on %s", health.Addr())
	}

	var tasks []*engine.Task
	if cfg.Tasks > 0 {
		tasks = scenario.Synthetic(cfg.Tasks, cfg.FailEvery, cfg.TaskDelay)
	} else {
		tasks = scenario.Reference(console, referencePause)
	}
	scenario.SubmitAll(pool, tasks)

	start := time.Now()
	pool.Run()
	log.Printf("pool %s drained %d tasks with %d workers in %s",
		pool.Name(), len(tasks), pool.WorkerCount(), time.Since(start).Round(time.Millisecond))
	if shipper != nil {
		ss := shipper.GetStats()
		log.Printf("shipped %d lines to %s (retries=%d failed=%d)", ss.Sent, ss.Endpoint, ss.Retries, ss.Failed)
	}

	if cfg.JournalPath != "" {
		if err := arrow.WriteJournal(cfg.JournalPath, eventLog.Entries()); err != nil {
			return pool.GetStats(), fmt.Errorf("failed to write journal: %w", err)
		}
		log.Printf("journal written to %s (%d entries)", cfg.JournalPath, eventLog.Len())
	}

	if cfg.Hold > 0 {
		hold(cfg.Hold)
	}
	if health != nil {
		health.SetServing(false)
	}

	return pool.GetStats(), nil
}

// hold blocks for d or until SIGINT/SIGTERM.
func hold(d time.Duration) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	log.Printf("holding for %s", d)
	select {
	case <-quit:
		log.Println("interrupted, shutting down")
	case <-time.After(d):
	}
}
