// Package config holds runtime configuration for the taskengine command.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
)

// Configuration errors
var (
	ErrInvalidWorkers   = errors.New("workers must be at least 1")
	ErrInvalidTasks     = errors.New("tasks must not be negative")
	ErrInvalidFailEvery = errors.New("fail-every must not be negative")
	ErrInvalidDelay     = errors.New("task delay must not be negative")
	ErrMissingNodeID    = errors.New("node id is required when shipping logs")
)

// Config holds configuration for one engine run.
type Config struct {
	// Workers is the number of worker goroutines
	Workers int

	// PoolName labels the pool in stats
	PoolName string

	// TimeLayout is the timestamp layout for log lines
	TimeLayout string

	// Quiet disables the console sink
	Quiet bool

	// JSONLog mirrors lifecycle lines to stderr as JSON via slog
	JSONLog bool

	// MetricsAddr serves Prometheus metrics when non-empty (e.g. ":9090")
	MetricsAddr string

	// HealthAddr serves the gRPC health service when non-empty (e.g. ":50051")
	HealthAddr string

	// ZmqEndpoint ships log lines to a collector when non-empty
	ZmqEndpoint string

	// NodeID identifies this engine in shipped lines
	NodeID string

	// JournalPath writes the event log as an Arrow IPC stream when non-empty
	JournalPath string

	// Tasks is the number of synthetic tasks; 0 runs the reference scenario
	Tasks int

	// FailEvery makes every n-th synthetic task fail; 0 disables failures
	FailEvery int

	// TaskDelay is how long each synthetic task sleeps
	TaskDelay time.Duration

	// Hold keeps the servers up after the drain so metrics can be scraped
	Hold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:    engine.DefaultWorkers,
		PoolName:   "taskengine",
		TimeLayout: engine.DefaultTimeLayout,
		NodeID:     "taskengine",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Workers)
	}
	if c.Tasks < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTasks, c.Tasks)
	}
	if c.FailEvery < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFailEvery, c.FailEvery)
	}
	if c.TaskDelay < 0 || c.Hold < 0 {
		return ErrInvalidDelay
	}
	if c.ZmqEndpoint != "" && c.NodeID == "" {
		return ErrMissingNodeID
	}
	return nil
}
