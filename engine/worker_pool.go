package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWorkers is the pool size used when a non-positive size is given.
const DefaultWorkers = 5

// Observer receives task lifecycle notifications alongside the EventLog.
// Implementations must be safe for concurrent use.
//
// QueueDepth is called with the queue locked, once per length change and in
// the order the changes happened, so it must be quick and must not touch
// the queue.
type Observer interface {
	TaskAdded(name string)
	TaskStarted(name string)
	TaskFinished(outcome Outcome)
	QueueDepth(depth int)
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Name        string  `json:"name"`
	Workers     int     `json:"workers"`
	Active      int64   `json:"active"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
	Running     bool    `json:"running"`
}

// Option configures a WorkerPool at construction time.
type Option func(*WorkerPool)

// WithName sets the pool name reported in stats.
func WithName(name string) Option {
	return func(p *WorkerPool) {
		p.name = name
	}
}

// WithObserver attaches a lifecycle observer, e.g. a metrics exporter.
func WithObserver(o Observer) Option {
	return func(p *WorkerPool) {
		p.observer = o
	}
}

// WorkerPool drains a TaskQueue with a fixed number of goroutines.
//
// Run spawns the workers and blocks until each one has observed an empty
// queue. Tasks submitted after every worker has exited stay queued until
// the next Run.
type WorkerPool struct {
	name     string
	workers  int
	queue    *TaskQueue
	log      *EventLog
	observer Observer

	// submitMu keeps "Task added" lines in enqueue order.
	submitMu sync.Mutex
	// runMu serializes Run calls.
	runMu sync.Mutex

	// Atomic counters for thread-safe statistics
	active    int64
	completed int64
	failed    int64

	running bool
	mu      sync.RWMutex
}

// NewWorkerPool creates a pool bound to a queue and a log.
// No workers are started until Run.
func NewWorkerPool(size int, queue *TaskQueue, log *EventLog, opts ...Option) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkers
	}
	if queue == nil {
		queue = NewTaskQueue()
	}
	if log == nil {
		log = NewEventLog()
	}

	p := &WorkerPool{
		name:    "default",
		workers: size,
		queue:   queue,
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.observer != nil {
		queue.setDepthHook(p.observer.QueueDepth)
	}
	return p
}

// Submit creates a task and enqueues it. Safe to call concurrently with Run.
func (p *WorkerPool) Submit(name string, action Action) *Task {
	task := NewTask(name, action)
	p.SubmitTask(task)
	return task
}

// SubmitTask enqueues an existing task and records "Task added".
func (p *WorkerPool) SubmitTask(task *Task) {
	if task == nil {
		return
	}

	p.submitMu.Lock()
	p.log.Record(MsgTaskAdded + task.Name())
	p.queue.Enqueue(task)
	p.submitMu.Unlock()

	if p.observer != nil {
		p.observer.TaskAdded(task.Name())
	}
}

// Run starts the workers and blocks until all of them have exited.
// With an empty queue it returns immediately without logging.
func (p *WorkerPool) Run() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.setRunning(true)
	defer p.setRunning(false)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(i, &wg)
	}
	wg.Wait()
}

// worker takes tasks until it observes an empty queue.
func (p *WorkerPool) worker(id int, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		task, ok := p.queue.TryTake()
		if !ok {
			return
		}
		p.processTask(id, task)
	}
}

// processTask executes a single task and records its terminal state.
func (p *WorkerPool) processTask(workerID int, task *Task) Outcome {
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	p.log.Record(MsgTaskExecuting + task.Name())
	if p.observer != nil {
		p.observer.TaskStarted(task.Name())
	}

	start := time.Now()
	outcome := Outcome{
		TaskID:   task.ID(),
		Name:     task.Name(),
		WorkerID: workerID,
	}
	outcome.Err = execute(task)
	outcome.Duration = time.Since(start)

	if outcome.Success() {
		atomic.AddInt64(&p.completed, 1)
		p.log.Record(MsgTaskCompleted + task.Name())
	} else {
		atomic.AddInt64(&p.failed, 1)
		p.log.Record(MsgTaskError + task.Name() + " - " + outcome.Err.Error())
	}

	if p.observer != nil {
		p.observer.TaskFinished(outcome)
	}
	return outcome
}

// execute runs the action, converting a panic into an error.
func execute(task *Task) (err error) {
	if task.action == nil {
		return ErrNoAction
	}

	// Panic recovery to prevent one task from crashing the entire pool
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s", ErrTaskPanicked, panicToString(r))
		}
	}()

	return task.action()
}

// panicToString converts a recovered panic value to a string.
func panicToString(r interface{}) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func (p *WorkerPool) setRunning(running bool) {
	p.mu.Lock()
	p.running = running
	p.mu.Unlock()
}

// IsRunning returns true while Run is draining the queue.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Name returns the pool name.
func (p *WorkerPool) Name() string {
	return p.name
}

// WorkerCount returns the number of workers Run spawns.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// Queue returns the pool's task queue.
func (p *WorkerPool) Queue() *TaskQueue {
	return p.queue
}

// Log returns the pool's event log.
func (p *WorkerPool) Log() *EventLog {
	return p.log
}

// GetStats returns current worker pool statistics.
func (p *WorkerPool) GetStats() PoolStats {
	completed := atomic.LoadInt64(&p.completed)
	failed := atomic.LoadInt64(&p.failed)
	total := completed + failed

	var successRate float64
	if total > 0 {
		successRate = float64(completed) / float64(total) * 100
	}

	return PoolStats{
		Name:        p.name,
		Workers:     p.workers,
		Active:      atomic.LoadInt64(&p.active),
		Completed:   completed,
		Failed:      failed,
		Pending:     p.queue.Len(),
		SuccessRate: successRate,
		Running:     p.IsRunning(),
	}
}
