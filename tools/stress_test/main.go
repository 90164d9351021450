package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/VanDung-dev/TaskDrain-Engine/scenario"
)

// StressTestConfig holds configuration for the stress test.
type StressTestConfig struct {
	Workers    int
	TaskCount  int
	FailEvery  int
	Sleep      time.Duration
	Rounds     int
	Verbose    bool
	ReportFile string
}

// StressTestResult holds the results of a stress test.
type StressTestResult struct {
	TotalTasks     int64
	CompletedTasks int64
	FailedTasks    int64
	LogLines       int
	TotalDuration  time.Duration
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	TasksPerSec    float64
}

// latencyObserver tracks per-task execution time through the pool's hooks.
type latencyObserver struct {
	finished     int64
	totalLatency int64
	minLatency   int64
	maxLatency   int64
}

func newLatencyObserver() *latencyObserver {
	return &latencyObserver{minLatency: 1<<63 - 1}
}

func (o *latencyObserver) TaskAdded(string) {}
func (o *latencyObserver) TaskStarted(string) {}
func (o *latencyObserver) QueueDepth(int) {}

func (o *latencyObserver) TaskFinished(out engine.Outcome) {
	lat := int64(out.Duration)
	atomic.AddInt64(&o.finished, 1)
	atomic.AddInt64(&o.totalLatency, lat)
	for {
		old := atomic.LoadInt64(&o.minLatency)
		if lat >= old || atomic.CompareAndSwapInt64(&o.minLatency, old, lat) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&o.maxLatency)
		if lat <= old || atomic.CompareAndSwapInt64(&o.maxLatency, old, lat) {
			break
		}
	}
}

func main() {
	config := parseFlags()

	fmt.Println("=== TaskDrain Worker Pool Stress Test ===")
	fmt.Printf("Workers: %d\n", config.Workers)
	fmt.Printf("Tasks: %d x %d rounds\n", config.TaskCount, config.Rounds)
	fmt.Printf("Fail every: %d\n", config.FailEvery)
	fmt.Printf("Sleep: %v\n", config.Sleep)
	fmt.Println()

	result := runStressTest(config)

	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result)
	}
}

func parseFlags() StressTestConfig {
	config := StressTestConfig{}

	flag.IntVar(&config.Workers, "c", engine.DefaultWorkers, "Number of pool workers")
	flag.IntVar(&config.TaskCount, "n", 10000, "Tasks submitted per round")
	flag.IntVar(&config.FailEvery, "fail", 10, "Every n-th task fails (0 = none)")
	flag.DurationVar(&config.Sleep, "sleep", 0, "Time each task sleeps")
	flag.IntVar(&config.Rounds, "r", 1, "Number of submit/run rounds")
	flag.BoolVar(&config.Verbose, "v", false, "Print every log line to stdout")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

func runStressTest(config StressTestConfig) StressTestResult {
	var sinks []engine.LogOption
	if config.Verbose {
		sinks = append(sinks, engine.WithSink(engine.NewWriterSink(os.Stdout)))
	}
	eventLog := engine.NewEventLog(sinks...)

	observer := newLatencyObserver()
	pool := engine.NewWorkerPool(config.Workers, nil, eventLog,
		engine.WithName("stress"),
		engine.WithObserver(observer),
	)

	startTime := time.Now()

	// Submitters race the drain of the previous round on purpose.
	var wg sync.WaitGroup
	for round := 0; round < config.Rounds; round++ {
		tasks := scenario.Synthetic(config.TaskCount, config.FailEvery, config.Sleep)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scenario.SubmitAll(pool, tasks)
		}()
		pool.Run()
	}
	wg.Wait()
	// Anything submitted after the last drain still has to run.
	pool.Run()

	duration := time.Since(startTime)
	stats := pool.GetStats()
	finished := atomic.LoadInt64(&observer.finished)

	var avgLatency, minLatency time.Duration
	if finished > 0 {
		avgLatency = time.Duration(atomic.LoadInt64(&observer.totalLatency) / finished)
		minLatency = time.Duration(atomic.LoadInt64(&observer.minLatency))
	}

	return StressTestResult{
		TotalTasks:     stats.Completed + stats.Failed,
		CompletedTasks: stats.Completed,
		FailedTasks:    stats.Failed,
		LogLines:       eventLog.Len(),
		TotalDuration:  duration,
		AvgLatency:     avgLatency,
		MinLatency:     minLatency,
		MaxLatency:     time.Duration(atomic.LoadInt64(&observer.maxLatency)),
		TasksPerSec:    float64(stats.Completed+stats.Failed) / duration.Seconds(),
	}
}

func printResults(result StressTestResult) {
	writeResults(os.Stdout, result)
}

func writeResults(w io.Writer, result StressTestResult) {
	pct := func(n int64) float64 {
		if result.TotalTasks == 0 {
			return 0
		}
		return float64(n) / float64(result.TotalTasks) * 100
	}
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Tasks:     %d\n", result.TotalTasks)
	fmt.Fprintf(w, "Completed:       %d (%.2f%%)\n", result.CompletedTasks, pct(result.CompletedTasks))
	fmt.Fprintf(w, "Failed:          %d (%.2f%%)\n", result.FailedTasks, pct(result.FailedTasks))
	fmt.Fprintf(w, "Log Lines:       %d\n", result.LogLines)
	fmt.Fprintf(w, "Tasks/sec:       %.2f\n", result.TasksPerSec)
	fmt.Fprintf(w, "Avg Latency:     %v\n", result.AvgLatency.Round(time.Microsecond))
	fmt.Fprintf(w, "Min Latency:     %v\n", result.MinLatency.Round(time.Microsecond))
	fmt.Fprintf(w, "Max Latency:     %v\n", result.MaxLatency.Round(time.Microsecond))
}

func saveReport(config StressTestConfig, result StressTestResult) {
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"workers":    config.Workers,
			"tasks":      config.TaskCount,
			"rounds":     config.Rounds,
			"fail_every": config.FailEvery,
			"sleep":      config.Sleep.String(),
		},
		"results": map[string]interface{}{
			"total_tasks":    result.TotalTasks,
			"completed":      result.CompletedTasks,
			"failed":         result.FailedTasks,
			"log_lines":      result.LogLines,
			"tasks_per_sec":  result.TasksPerSec,
			"avg_latency_ms": float64(result.AvgLatency.Microseconds()) / 1000,
			"min_latency_ms": float64(result.MinLatency.Microseconds()) / 1000,
			"max_latency_ms": float64(result.MaxLatency.Microseconds()) / 1000,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, data, 0644); err != nil {
		log.Printf("Failed to write report: %v", err)
	} else {
		fmt.Printf("Report saved to: %s\n", config.ReportFile)
	}
}
