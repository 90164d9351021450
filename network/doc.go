// Package network ships event log lines over ZeroMQ.
// This package implements:
// - ZmqSink: an engine.Sink that sends each line from a DEALER socket and
//   waits for the collector's acknowledgement
// - Collector: a ROUTER endpoint that receives and acknowledges lines from
//   many engines, dropping resent duplicates
package network
