// Package scenario builds the task sets the taskengine command runs.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
)

// ErrSynthetic is returned by synthetic tasks chosen to fail.
var ErrSynthetic = errors.New("synthetic failure")

// ProcessData returns the sum of the even squares of data.
func ProcessData(data []int) int {
	sum := 0
	for _, x := range data {
		if sq := x * x; sq%2 == 0 {
			sum += sq
		}
	}
	return sum
}

// Reference returns the four reference tasks. Their output goes to out.
// pause is how long Task 2 sleeps before reporting.
func Reference(out io.Writer, pause time.Duration) []*engine.Task {
	return []*engine.Task{
		engine.NewTask("Task 1", func() error {
			_, err := fmt.Fprintln(out, ProcessData([]int{1, 2, 3, 4, 5}))
			return err
		}),
		engine.NewTask("Task 2", func() error {
			time.Sleep(pause)
			_, err := fmt.Fprintln(out, "Hello from Task 2")
			return err
		}),
		engine.NewTask("Task 3", func() error {
			return errors.New("Something went wrong")
		}),
		engine.NewTask("Task 4", func() error {
			_, err := fmt.Fprintln(out, "Task 4 is running")
			return err
		}),
	}
}

// Synthetic returns n tasks named "task-<i>" that sleep for delay.
// With failEvery > 0, every failEvery-th task fails.
func Synthetic(n, failEvery int, delay time.Duration) []*engine.Task {
	tasks := make([]*engine.Task, 0, n)
	for i := 1; i <= n; i++ {
		fail := failEvery > 0 && i%failEvery == 0
		tasks = append(tasks, engine.NewTask(fmt.Sprintf("task-%d", i), func() error {
			if delay > 0 {
				time.Sleep(delay)
			}
			if fail {
				return ErrSynthetic
			}
			return nil
		}))
	}
	return tasks
}

// SubmitAll submits tasks to pool in order.
func SubmitAll(pool *engine.WorkerPool, tasks []*engine.Task) {
	for _, task := range tasks {
		pool.SubmitTask(task)
	}
}
