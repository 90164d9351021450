package engine

import (
	"fmt"
	"sync"

	"github.com/golang-collections/collections/queue"
)

// TaskQueue is a thread-safe FIFO of pending tasks.
// The only way to remove a task is TryTake, which checks and removes
// under a single lock.
type TaskQueue struct {
	mu    sync.Mutex
	tasks *queue.Queue

	// onDepth sees every length change, in order, under mu.
	onDepth func(depth int)
}

// NewTaskQueue creates an empty TaskQueue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: queue.New(),
	}
}

// Enqueue appends a task at the tail. Nil tasks are ignored.
func (q *TaskQueue) Enqueue(task *Task) {
	if task == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks.Enqueue(task)
	q.notifyDepth()
}

// TryTake removes and returns the head task.
// Returns false if the queue was empty at the moment of the call.
func (q *TaskQueue) TryTake() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tasks.Len() == 0 {
		return nil, false
	}

	item := q.tasks.Dequeue()
	task, ok := item.(*Task)
	if !ok || task == nil {
		// Only Enqueue writes to the queue, so this is corruption.
		panic(fmt.Sprintf("engine: task queue holds %T, want *Task", item))
	}
	q.notifyDepth()
	return task, true
}

// setDepthHook installs fn to be called with the new length after every
// Enqueue and successful TryTake. fn runs with the queue locked and must
// not call back into the queue.
func (q *TaskQueue) setDepthHook(fn func(depth int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDepth = fn
}

func (q *TaskQueue) notifyDepth() {
	if q.onDepth != nil {
		q.onDepth(q.tasks.Len())
	}
}

// Len returns the number of pending tasks.
// The value is a snapshot; never use it to decide whether to call TryTake.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

// IsEmpty returns true if no tasks are pending.
func (q *TaskQueue) IsEmpty() bool {
	return q.Len() == 0
}
