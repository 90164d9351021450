package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var endpointSeq int64

func testEndpoint() string {
	return fmt.Sprintf("inproc://taskengine-test-%d", atomic.AddInt64(&endpointSeq, 1))
}

func receive(t *testing.T, c *Collector) *LineMessage {
	t.Helper()
	select {
	case msg := <-c.Lines():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for line")
		return nil
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector("tcp://127.0.0.1:5557", nil)

	stats := c.GetStats()
	assert.Equal(t, "tcp://127.0.0.1:5557", stats.Endpoint)
	assert.False(t, stats.IsRunning)

	// Stop before Start is a no-op
	c.Stop()
}

func TestSinkToCollector(t *testing.T) {
	endpoint := testEndpoint()

	var handled int64
	c := NewCollector(endpoint, func(msg *LineMessage) {
		atomic.AddInt64(&handled, 1)
	})
	require.NoError(t, c.Start())
	defer c.Stop()

	sink, err := DialSink("node-a", endpoint)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteLine("[2024-05-01 12:00:00 +0000] Task added: Task 1"))

	msg := receive(t, c)
	assert.Equal(t, "node-a", msg.Node)
	assert.Equal(t, "[2024-05-01 12:00:00 +0000] Task added: Task 1", msg.Line)
	assert.False(t, msg.SentAt.IsZero())
	assert.Equal(t, int64(1), atomic.LoadInt64(&handled))
	assert.Equal(t, int64(1), c.GetStats().Received)
}

func TestSinkShipsPoolLifecycle(t *testing.T) {
	endpoint := testEndpoint()

	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	sink, err := DialSink("engine-1", endpoint)
	require.NoError(t, err)
	defer sink.Close()

	log := engine.NewEventLog(engine.WithSink(sink))
	pool := engine.NewWorkerPool(2, nil, log)
	pool.Submit("ok", func() error { return nil })
	pool.Run()

	seen := map[engine.EventKind]bool{}
	for i := 0; i < 3; i++ {
		msg := receive(t, c)
		// Strip "[timestamp] " before parsing
		_, text, found := strings.Cut(msg.Line, "] ")
		require.True(t, found, msg.Line)
		lc, ok := engine.ParseLifecycle(text)
		require.True(t, ok, text)
		assert.Equal(t, "ok", lc.Task)
		seen[lc.Kind] = true
	}
	assert.True(t, seen[engine.KindAdded])
	assert.True(t, seen[engine.KindExecuting])
	assert.True(t, seen[engine.KindCompleted])
	assert.Equal(t, int64(0), log.SinkErrors())
}

func TestCollectorCountsMalformed(t *testing.T) {
	endpoint := testEndpoint()

	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dealer := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity("raw")))
	require.NoError(t, dealer.Dial(endpoint))
	defer dealer.Close()

	require.NoError(t, dealer.Send(zmq4.NewMsg([]byte("not json"))))
	require.NoError(t, dealer.Send(zmq4.NewMsg([]byte(`{"node":"raw","line":"hello"}`))))

	msg := receive(t, c)
	assert.Equal(t, "hello", msg.Line)
	assert.Equal(t, int64(1), c.GetStats().Malformed)
}

func TestCollectorDropsResentLines(t *testing.T) {
	endpoint := testEndpoint()

	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dealer := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity("resender")))
	require.NoError(t, dealer.Dial(endpoint))
	defer dealer.Close()

	frame := []byte(`{"node":"n","sink":"resender","seq":1,"line":"Task added: t"}`)
	for i := 0; i < 2; i++ {
		require.NoError(t, dealer.Send(zmq4.NewMsg(frame)))

		// Every copy is acknowledged, including the duplicate.
		reply, err := dealer.Recv()
		require.NoError(t, err)
		var ack Ack
		require.NoError(t, json.Unmarshal(reply.Bytes(), &ack))
		assert.Equal(t, uint64(1), ack.Seq)
	}

	msg := receive(t, c)
	assert.Equal(t, "Task added: t", msg.Line)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, 0, stats.QueueSize)
}

func TestSinkShipsFullPoolRun(t *testing.T) {
	const tasks = 60

	endpoint := testEndpoint()
	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	sink, err := DialSink("engine-1", endpoint)
	require.NoError(t, err)

	log := engine.NewEventLog(engine.WithSink(sink))
	pool := engine.NewWorkerPool(8, nil, log)
	for i := 0; i < tasks; i++ {
		i := i
		pool.Submit(fmt.Sprintf("task-%d", i), func() error {
			if i%4 == 0 {
				return errors.New("boom")
			}
			return nil
		})
	}
	pool.Run()

	// Closing right after the run must not lose anything already written.
	require.NoError(t, sink.Close())

	// Every line was acknowledged, so all of them are already queued.
	want := log.Entries()
	require.Len(t, want, 3*tasks)
	got := make([]string, 0, len(want))
	for len(got) < len(want) {
		got = append(got, receive(t, c).Line)
	}
	for i, e := range want {
		assert.Equal(t, e.Line(log.TimeLayout()), got[i], "line %d", i)
	}

	kinds := map[string]map[engine.EventKind]bool{}
	for _, line := range got {
		_, text, found := strings.Cut(line, "] ")
		require.True(t, found, line)
		lc, ok := engine.ParseLifecycle(text)
		require.True(t, ok, text)
		if kinds[lc.Task] == nil {
			kinds[lc.Task] = map[engine.EventKind]bool{}
		}
		kinds[lc.Task][lc.Kind] = true
	}
	assert.Len(t, kinds, tasks)
	for name, seen := range kinds {
		assert.True(t, seen[engine.KindAdded], name)
		assert.True(t, seen[engine.KindExecuting], name)
		assert.True(t, seen[engine.KindCompleted] != seen[engine.KindFailed], name)
	}

	assert.Equal(t, int64(0), log.SinkErrors())
	assert.Equal(t, int64(3*tasks), sink.GetStats().Sent)
	stats := c.GetStats()
	assert.Equal(t, int64(3*tasks), stats.Received)
	assert.Equal(t, int64(0), stats.Dropped)
	assert.Equal(t, int64(0), stats.RecvErrors)
}

func TestSinkReportsUnacknowledgedLine(t *testing.T) {
	endpoint := testEndpoint()
	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())

	sink, err := DialSink("node", endpoint,
		WithAckTimeout(50*time.Millisecond),
		WithMaxAttempts(2),
	)
	require.NoError(t, err)
	defer sink.Close()

	log := engine.NewEventLog(engine.WithSink(sink))
	log.Record("delivered")
	receive(t, c)

	c.Stop()
	log.Record("lost")

	assert.Equal(t, int64(1), log.SinkErrors())
	stats := sink.GetStats()
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, minRecvBackoff, nextBackoff(0))
	assert.Equal(t, 2*minRecvBackoff, nextBackoff(minRecvBackoff))
	assert.Equal(t, maxRecvBackoff, nextBackoff(maxRecvBackoff/2+time.Millisecond))
	assert.Equal(t, maxRecvBackoff, nextBackoff(maxRecvBackoff))
}

func TestCollectorDoubleStart(t *testing.T) {
	c := NewCollector(testEndpoint(), nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	assert.ErrorIs(t, c.Start(), ErrCollectorRunning)
}

func TestSinkClosed(t *testing.T) {
	endpoint := testEndpoint()
	c := NewCollector(endpoint, nil)
	require.NoError(t, c.Start())
	defer c.Stop()

	sink, err := DialSink("node", endpoint)
	require.NoError(t, err)
	assert.Equal(t, endpoint, sink.Endpoint())

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.WriteLine("late"), ErrSinkClosed)
}
