// Package api provides Prometheus metrics and a gRPC health endpoint for the task engine.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
// It implements engine.Observer so a WorkerPool can feed it directly.
type Metrics struct {
	// Task metrics
	TasksAdded     prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TaskDuration   prometheus.Histogram

	// Pool metrics
	TasksActive  prometheus.Gauge
	PendingTasks prometheus.Gauge
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates metrics under namespace and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "taskengine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TasksAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_added_total",
			Help:      "Total number of tasks submitted",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks whose action returned normally",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks whose action failed",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		TasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active",
			Help:      "Number of tasks currently executing",
		}),
		PendingTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of pending tasks in the queue",
		}),
	}
}

// TaskAdded records a task submission.
func (m *Metrics) TaskAdded(name string) {
	m.TasksAdded.Inc()
}

// TaskStarted records a task leaving the queue.
func (m *Metrics) TaskStarted(name string) {
	m.TasksActive.Inc()
}

// TaskFinished records a task reaching a terminal state.
func (m *Metrics) TaskFinished(outcome engine.Outcome) {
	m.TasksActive.Dec()
	m.TaskDuration.Observe(outcome.Duration.Seconds())
	if outcome.Success() {
		m.TasksCompleted.Inc()
	} else {
		m.TasksFailed.Inc()
	}
}

// QueueDepth updates the queue depth gauge.
func (m *Metrics) QueueDepth(depth int) {
	m.PendingTasks.Set(float64(depth))
}

// MetricsServer runs an HTTP server exposing /metrics, /health and /stats.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a new metrics server on the given address.
// gatherer may be nil to serve the default registry; pool may be nil to
// disable /stats.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer, pool *engine.WorkerPool) *MetricsServer {
	mux := http.NewServeMux()
	if gatherer == nil {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if pool != nil {
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(pool.GetStats())
		})
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	return s.server.ListenAndServe()
}

// StartAsync binds the address and serves in a goroutine.
func (s *MetricsServer) StartAsync() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = lis
	go func() {
		_ = s.server.Serve(lis)
	}()
	return nil
}

// Addr returns the bound address after StartAsync, or the configured one.
func (s *MetricsServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
