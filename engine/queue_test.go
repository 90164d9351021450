package engine

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue()

	for i := 0; i < 5; i++ {
		q.Enqueue(NewTask(fmt.Sprintf("task-%d", i), nil))
	}

	if q.Len() != 5 {
		t.Fatalf("Expected 5 pending, got %d", q.Len())
	}

	for i := 0; i < 5; i++ {
		task, ok := q.TryTake()
		if !ok {
			t.Fatalf("Step %d: queue unexpectedly empty", i)
		}
		want := fmt.Sprintf("task-%d", i)
		if task.Name() != want {
			t.Errorf("Step %d: got %s, want %s", i, task.Name(), want)
		}
	}
}

func TestTaskQueueTryTakeEmpty(t *testing.T) {
	q := NewTaskQueue()

	task, ok := q.TryTake()
	if ok || task != nil {
		t.Fatalf("Expected empty signal, got %v", task)
	}

	q.Enqueue(NewTask("only", nil))
	if _, ok := q.TryTake(); !ok {
		t.Fatal("Expected a task")
	}

	// Repeated takes after draining never repeat a prior task
	for i := 0; i < 10; i++ {
		if task, ok := q.TryTake(); ok {
			t.Fatalf("Take %d after drain returned %s", i, task.Name())
		}
	}
	if !q.IsEmpty() {
		t.Error("Queue should be empty")
	}
}

func TestTaskQueueIgnoresNil(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(nil)

	if q.Len() != 0 {
		t.Errorf("Expected nil task to be ignored, got len %d", q.Len())
	}
}

func TestTaskQueueConcurrentTakeNoDuplicates(t *testing.T) {
	q := NewTaskQueue()
	numTasks := 1000
	numProducers := 4
	numTakers := 16

	var producers sync.WaitGroup
	var producing int32 = 1

	var mu sync.Mutex
	seen := make(map[string]int)

	// Takers start first and keep going until producers are done and
	// the queue is empty, so Enqueue and TryTake overlap.
	var takers sync.WaitGroup
	for w := 0; w < numTakers; w++ {
		takers.Add(1)
		go func() {
			defer takers.Done()
			for {
				task, ok := q.TryTake()
				if !ok {
					if atomic.LoadInt32(&producing) == 0 && q.IsEmpty() {
						return
					}
					runtime.Gosched()
					continue
				}
				mu.Lock()
				seen[task.ID().String()]++
				mu.Unlock()
			}
		}()
	}

	for p := 0; p < numProducers; p++ {
		producers.Add(1)
		go func(p int) {
			defer producers.Done()
			for i := 0; i < numTasks/numProducers; i++ {
				q.Enqueue(NewTask(fmt.Sprintf("p%d-%d", p, i), nil))
			}
		}(p)
	}
	producers.Wait()
	atomic.StoreInt32(&producing, 0)
	takers.Wait()

	if len(seen) != numTasks {
		t.Fatalf("Expected %d distinct tasks, got %d", numTasks, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("Task %s taken %d times", id, n)
		}
	}
	if !q.IsEmpty() {
		t.Errorf("Expected empty queue, got len %d", q.Len())
	}
}

func TestTaskQueuePerProducerOrder(t *testing.T) {
	q := NewTaskQueue()

	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(NewTask(fmt.Sprintf("%d:%03d", p, i), nil))
			}
		}(p)
	}
	wg.Wait()

	// Dispatch order must be a linear extension of each producer's order
	last := map[byte]string{}
	for {
		task, ok := q.TryTake()
		if !ok {
			break
		}
		name := task.Name()
		if prev, ok := last[name[0]]; ok && prev > name {
			t.Fatalf("Out of order: %s after %s", name, prev)
		}
		last[name[0]] = name
	}
}

func TestTaskQueueCorruptionPanics(t *testing.T) {
	q := NewTaskQueue()
	q.tasks.Enqueue("not a task")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on corrupted queue")
		}
	}()
	q.TryTake()
}

func TestTaskQueueDepthHook(t *testing.T) {
	q := NewTaskQueue()
	var depths []int
	q.setDepthHook(func(depth int) { depths = append(depths, depth) })

	q.Enqueue(NewTask("a", nil))
	q.Enqueue(NewTask("b", nil))
	q.Enqueue(nil)
	q.TryTake()
	q.TryTake()
	q.TryTake() // empty: no change, no call

	want := []int{1, 2, 1, 0}
	if fmt.Sprint(depths) != fmt.Sprint(want) {
		t.Errorf("Expected depths %v, got %v", want, depths)
	}
}
