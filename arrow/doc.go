// Package arrow provides Apache Arrow export of the engine's event log.
// This package implements:
// - Journal schema definition
// - EventLog entries to Arrow converter
// - Arrow IPC journal files
package arrow
