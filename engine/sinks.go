package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// WriterSink writes each line, newline-terminated, to an io.Writer.
// Use it with os.Stdout for console output. WriterSink is itself an
// io.Writer, so task output can share the same destination without
// tearing log lines.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteLine writes line followed by a newline in a single Write call.
func (s *WriterSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// Write writes p under the sink's lock.
func (s *WriterSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// SlogSink forwards entries to a structured slog pipeline.
// Failure lines are logged at error level, everything else at info.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// WriteLine logs a preformatted line.
func (s *SlogSink) WriteLine(line string) error {
	s.logger.Info(line)
	return nil
}

// WriteEntry logs the entry with its sequence number and timestamp as attributes.
func (s *SlogSink) WriteEntry(entry Entry) error {
	level := slog.LevelInfo
	if strings.HasPrefix(entry.Message, MsgTaskError) {
		level = slog.LevelError
	}
	s.logger.LogAttrs(context.Background(), level, entry.Message,
		slog.Uint64("seq", entry.Seq),
		slog.Time("recorded_at", entry.Timestamp),
	)
	return nil
}
