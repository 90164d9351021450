package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
)

// Common errors for network operations
var (
	ErrSinkClosed       = errors.New("sink is closed")
	ErrCollectorRunning = errors.New("collector already running")
	ErrSendFailed       = errors.New("failed to send line")
	ErrNotAcknowledged  = errors.New("line not acknowledged by collector")
)

// Delivery defaults for DialSink.
const (
	DefaultAckTimeout  = 2 * time.Second
	DefaultMaxAttempts = 3
)

// LineMessage is the wire format for one log line.
// Seq numbers the lines of one sink starting at 1; the collector uses
// (Sink, Seq) to drop resent duplicates.
type LineMessage struct {
	Node   string    `json:"node"`
	Sink   string    `json:"sink"`
	Seq    uint64    `json:"seq"`
	Line   string    `json:"line"`
	SentAt time.Time `json:"sent_at"`
}

// Ack is the collector's reply to a LineMessage.
type Ack struct {
	Seq uint64 `json:"seq"`
}

// SinkOption configures a ZmqSink.
type SinkOption func(*ZmqSink)

// WithAckTimeout sets how long WriteLine waits for each acknowledgement.
func WithAckTimeout(d time.Duration) SinkOption {
	return func(s *ZmqSink) {
		if d > 0 {
			s.ackTimeout = d
		}
	}
}

// WithMaxAttempts sets how many times a line is sent before WriteLine fails.
func WithMaxAttempts(n int) SinkOption {
	return func(s *ZmqSink) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// SinkStats contains sink statistics.
type SinkStats struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	Sent     int64  `json:"sent"`
	Retries  int64  `json:"retries"`
	Failed   int64  `json:"failed"`
}

// ZmqSink is an engine.Sink that ships every line to a Collector over a
// DEALER socket. WriteLine returns only after the collector has acknowledged
// the line, so a nil error means the line was delivered.
type ZmqSink struct {
	node     string
	id       string
	endpoint string

	ackTimeout  time.Duration
	maxAttempts int

	ctx    context.Context
	cancel context.CancelFunc
	dealer zmq4.Socket
	acks   chan uint64
	wg     sync.WaitGroup

	seq     uint64
	sent    int64
	retries int64
	failed  int64

	closed bool
	mu     sync.Mutex
}

var _ engine.Sink = (*ZmqSink)(nil)

// DialSink connects to a Collector at endpoint, e.g. "tcp://127.0.0.1:5557".
// node identifies this engine in every message.
func DialSink(node, endpoint string, opts ...SinkOption) (*ZmqSink, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &ZmqSink{
		node:        node,
		id:          node + "-" + uuid.NewString(),
		endpoint:    endpoint,
		ackTimeout:  DefaultAckTimeout,
		maxAttempts: DefaultMaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
		acks:        make(chan uint64, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	// The identity must be unique per sink: the collector routes acks by it.
	s.dealer = zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(s.id)))
	if err := s.dealer.Dial(endpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	s.wg.Add(1)
	go s.ackLoop()
	return s, nil
}

// WriteLine sends the line and waits for the collector's acknowledgement,
// resending on timeout up to the configured number of attempts.
func (s *ZmqSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	s.seq++
	data, err := json.Marshal(&LineMessage{
		Node:   s.node,
		Sink:   s.id,
		Seq:    s.seq,
		Line:   line,
		SentAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal line: %w", err)
	}
	msg := zmq4.NewMsg(data)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			atomic.AddInt64(&s.retries, 1)
		}
		if err := s.dealer.Send(msg); err != nil {
			atomic.AddInt64(&s.failed, 1)
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		if s.awaitAck(s.seq) {
			atomic.AddInt64(&s.sent, 1)
			return nil
		}
	}

	atomic.AddInt64(&s.failed, 1)
	return fmt.Errorf("%w: seq %d after %d attempts", ErrNotAcknowledged, s.seq, s.maxAttempts)
}

// awaitAck waits for the ack of seq, skipping acks of earlier resends.
func (s *ZmqSink) awaitAck(seq uint64) bool {
	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case got := <-s.acks:
			if got == seq {
				return true
			}
		case <-timer.C:
			return false
		case <-s.ctx.Done():
			return false
		}
	}
}

// ackLoop reads acknowledgements from the DEALER socket.
func (s *ZmqSink) ackLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.dealer.Recv()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		var ack Ack
		if err := json.Unmarshal(msg.Bytes(), &ack); err != nil {
			continue
		}

		select {
		case s.acks <- ack.Seq:
		case <-s.ctx.Done():
			return
		}
	}
}

// ID returns the sink's unique identity on the wire.
func (s *ZmqSink) ID() string {
	return s.id
}

// Endpoint returns the dialed endpoint.
func (s *ZmqSink) Endpoint() string {
	return s.endpoint
}

// GetStats returns current sink statistics.
func (s *ZmqSink) GetStats() SinkStats {
	return SinkStats{
		ID:       s.id,
		Endpoint: s.endpoint,
		Sent:     atomic.LoadInt64(&s.sent),
		Retries:  atomic.LoadInt64(&s.retries),
		Failed:   atomic.LoadInt64(&s.failed),
	}
}

// Close closes the socket. Further writes return ErrSinkClosed.
// Every line WriteLine reported as sent has already been acknowledged.
func (s *ZmqSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()
	err := s.dealer.Close()
	s.wg.Wait()
	return err
}
