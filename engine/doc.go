// Package engine provides the concurrent task-execution core.
// This package implements:
// - Task: a named, immutable unit of work
// - TaskQueue: a thread-safe FIFO with an atomic take
// - EventLog: a timestamped, append-only lifecycle log with pluggable sinks
// - WorkerPool: a fixed set of goroutines draining the queue
package engine
