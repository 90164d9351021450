package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunStressTest(t *testing.T) {
	result := runStressTest(StressTestConfig{
		Workers:   4,
		TaskCount: 200,
		FailEvery: 10,
		Rounds:    3,
	})

	if result.TotalTasks != 600 {
		t.Fatalf("Expected 600 tasks, got %d", result.TotalTasks)
	}
	if result.FailedTasks != 60 {
		t.Errorf("Expected 60 failures, got %d", result.FailedTasks)
	}
	if result.CompletedTasks != 540 {
		t.Errorf("Expected 540 completions, got %d", result.CompletedTasks)
	}
	// added + executing + outcome per task
	if result.LogLines != 1800 {
		t.Errorf("Expected 1800 log lines, got %d", result.LogLines)
	}
	if result.MinLatency > result.MaxLatency {
		t.Errorf("min latency %v above max %v", result.MinLatency, result.MaxLatency)
	}
}

func TestWriteResultsEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	writeResults(&buf, StressTestResult{})

	out := buf.String()
	if !strings.Contains(out, "Completed:       0 (0.00%)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
