package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
)

// Receive-error backoff bounds.
const (
	minRecvBackoff = 10 * time.Millisecond
	maxRecvBackoff = time.Second
)

// LineHandler is a callback for received lines.
type LineHandler func(msg *LineMessage)

// CollectorStats contains collector statistics.
type CollectorStats struct {
	Endpoint   string `json:"endpoint"`
	Received   int64  `json:"received"`
	Duplicates int64  `json:"duplicates"`
	Malformed  int64  `json:"malformed"`
	Dropped    int64  `json:"dropped"`
	RecvErrors int64  `json:"recv_errors"`
	AckErrors  int64  `json:"ack_errors"`
	IsRunning  bool   `json:"is_running"`
	QueueSize  int    `json:"queue_size"`
}

// Collector receives lines from any number of ZmqSinks on a ROUTER socket
// and acknowledges each one back to its sink.
type Collector struct {
	endpoint string

	ctx    context.Context
	cancel context.CancelFunc
	router zmq4.Socket

	handler LineHandler
	lines   chan *LineMessage

	// Highest Seq delivered per sink identity. Owned by receiverLoop.
	lastSeq map[string]uint64

	received   int64
	duplicates int64
	malformed  int64
	dropped    int64
	recvErrors int64
	ackErrors  int64

	running bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewCollector creates a collector for endpoint, e.g. "tcp://*:5557".
// handler may be nil; lines are always available on Lines().
func NewCollector(endpoint string, handler LineHandler) *Collector {
	ctx, cancel := context.WithCancel(context.Background())

	return &Collector{
		endpoint: endpoint,
		ctx:      ctx,
		cancel:   cancel,
		handler:  handler,
		lines:    make(chan *LineMessage, 1000),
		lastSeq:  make(map[string]uint64),
	}
}

// Start binds the ROUTER socket and begins receiving.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrCollectorRunning
	}

	c.router = zmq4.NewRouter(c.ctx)
	if err := c.router.Listen(c.endpoint); err != nil {
		return fmt.Errorf("failed to bind collector: %w", err)
	}
	c.running = true

	c.wg.Add(1)
	go c.receiverLoop()
	return nil
}

// Stop shuts down the collector and closes Lines().
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	// Cancel context to stop the receiver
	c.cancel()

	if err := c.router.Close(); err != nil {
		_ = err // errors are expected during shutdown
	}

	c.wg.Wait()
	close(c.lines)
}

// Lines returns the channel of received lines.
func (c *Collector) Lines() <-chan *LineMessage {
	return c.lines
}

// receiverLoop continuously receives frames from the ROUTER socket.
func (c *Collector) receiverLoop() {
	defer c.wg.Done()

	var backoff time.Duration
	for {
		msg, err := c.router.Recv()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			atomic.AddInt64(&c.recvErrors, 1)
			backoff = nextBackoff(backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		// ROUTER prepends the sender identity frame.
		if len(msg.Frames) < 2 {
			atomic.AddInt64(&c.malformed, 1)
			continue
		}
		peer := msg.Frames[0]

		var line LineMessage
		if err := json.Unmarshal(msg.Frames[len(msg.Frames)-1], &line); err != nil {
			atomic.AddInt64(&c.malformed, 1)
			continue
		}

		if c.isDuplicate(string(peer), line.Seq) {
			atomic.AddInt64(&c.duplicates, 1)
		} else {
			c.deliver(&line)
		}
		// Ack after delivery so a sent line is already on Lines().
		c.ack(peer, line.Seq)
	}
}

// isDuplicate reports whether seq was already delivered for peer and
// records it otherwise. Unnumbered lines (seq 0) are never duplicates.
func (c *Collector) isDuplicate(peer string, seq uint64) bool {
	if seq == 0 {
		return false
	}
	if seq <= c.lastSeq[peer] {
		return true
	}
	c.lastSeq[peer] = seq
	return false
}

func (c *Collector) deliver(line *LineMessage) {
	atomic.AddInt64(&c.received, 1)

	if c.handler != nil {
		c.handler(line)
	}

	// Send to channel (non-blocking)
	select {
	case c.lines <- line:
	default:
		atomic.AddInt64(&c.dropped, 1)
	}
}

func (c *Collector) ack(peer []byte, seq uint64) {
	data, err := json.Marshal(Ack{Seq: seq})
	if err == nil {
		err = c.router.Send(zmq4.NewMsgFrom(peer, data))
	}
	if err != nil {
		atomic.AddInt64(&c.ackErrors, 1)
	}
}

// nextBackoff doubles the previous wait within [minRecvBackoff, maxRecvBackoff].
func nextBackoff(prev time.Duration) time.Duration {
	if prev < minRecvBackoff {
		return minRecvBackoff
	}
	if next := prev * 2; next < maxRecvBackoff {
		return next
	}
	return maxRecvBackoff
}

// GetStats returns current collector statistics.
func (c *Collector) GetStats() CollectorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CollectorStats{
		Endpoint:   c.endpoint,
		Received:   atomic.LoadInt64(&c.received),
		Duplicates: atomic.LoadInt64(&c.duplicates),
		Malformed:  atomic.LoadInt64(&c.malformed),
		Dropped:    atomic.LoadInt64(&c.dropped),
		RecvErrors: atomic.LoadInt64(&c.recvErrors),
		AckErrors:  atomic.LoadInt64(&c.ackErrors),
		IsRunning:  c.running,
		QueueSize:  len(c.lines),
	}
}
