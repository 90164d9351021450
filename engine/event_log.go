package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeLayout is the timestamp format used in log lines.
const DefaultTimeLayout = "2006-01-02 15:04:05 -0700"

// Lifecycle message prefixes. Downstream consumers match on these verbatim.
const (
	MsgTaskAdded     = "Task added: "
	MsgTaskExecuting = "Executing task: "
	MsgTaskCompleted = "Task completed: "
	MsgTaskError     = "Error executing task: "
)

// Sink accepts fully-formed log lines.
type Sink interface {
	WriteLine(line string) error
}

// EntrySink is implemented by sinks that want the structured entry
// instead of the formatted line.
type EntrySink interface {
	Sink
	WriteEntry(entry Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string) error

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) error {
	return f(line)
}

// Entry is one recorded log message.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Line formats the entry as "[<timestamp>] <message>".
func (e Entry) Line(layout string) string {
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return "[" + e.Timestamp.Format(layout) + "] " + e.Message
}

// LogOption configures an EventLog at construction time.
type LogOption func(*EventLog)

// WithSink adds an output sink.
func WithSink(sink Sink) LogOption {
	return func(l *EventLog) {
		if sink != nil {
			l.sinks = append(l.sinks, sink)
		}
	}
}

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(now func() time.Time) LogOption {
	return func(l *EventLog) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTimeLayout overrides DefaultTimeLayout.
func WithTimeLayout(layout string) LogOption {
	return func(l *EventLog) {
		if layout != "" {
			l.layout = layout
		}
	}
}

// EventLog is a thread-safe, append-only, timestamped message log.
// Each Record writes one complete line to every sink while holding the
// log's lock, so lines from concurrent callers are never merged.
type EventLog struct {
	mu      sync.Mutex
	entries []Entry
	sinks   []Sink
	now     func() time.Time
	layout  string

	sinkErrors int64
}

// NewEventLog creates an EventLog. With no sinks it only retains entries.
func NewEventLog(opts ...LogOption) *EventLog {
	l := &EventLog{
		entries: make([]Entry, 0, 64),
		now:     time.Now,
		layout:  DefaultTimeLayout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddSink attaches another sink. Lines recorded earlier are not replayed.
func (l *EventLog) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Record appends a timestamped message and writes it to all sinks.
func (l *EventLog) Record(message string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Seq:       uint64(len(l.entries)) + 1,
		Timestamp: l.now(),
		Message:   message,
	}
	l.entries = append(l.entries, entry)

	if len(l.sinks) == 0 {
		return entry
	}

	line := entry.Line(l.layout)
	for _, sink := range l.sinks {
		var err error
		if es, ok := sink.(EntrySink); ok {
			err = es.WriteEntry(entry)
		} else {
			err = sink.WriteLine(line)
		}
		if err != nil {
			atomic.AddInt64(&l.sinkErrors, 1)
			log.Printf("eventlog: sink %T failed: %v", sink, err)
		}
	}
	return entry
}

// Recordf formats according to a format specifier and records the result.
func (l *EventLog) Recordf(format string, args ...any) Entry {
	return l.Record(fmt.Sprintf(format, args...))
}

// Entries returns a copy of all recorded entries in order.
func (l *EventLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Messages returns the recorded messages without timestamps.
func (l *EventLog) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs := make([]string, len(l.entries))
	for i, e := range l.entries {
		msgs[i] = e.Message
	}
	return msgs
}

// Len returns the number of recorded entries.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SinkErrors returns how many sink writes have failed.
func (l *EventLog) SinkErrors() int64 {
	return atomic.LoadInt64(&l.sinkErrors)
}

// TimeLayout returns the timestamp layout used for lines.
func (l *EventLog) TimeLayout() string {
	return l.layout
}
