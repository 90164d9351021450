package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for task execution
var (
	ErrNoAction     = errors.New("no action defined")
	ErrTaskPanicked = errors.New("panic in task execution")
)

// Action is the zero-argument work a task performs.
type Action func() error

// Task represents a unit of work for the worker pool.
// A Task is immutable once created.
type Task struct {
	id        uuid.UUID
	name      string
	action    Action
	createdAt time.Time
}

// NewTask creates a new task with a generated ID.
func NewTask(name string, action Action) *Task {
	return &Task{
		id:        uuid.New(),
		name:      name,
		action:    action,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Name returns the task's display name.
func (t *Task) Name() string {
	return t.name
}

// CreatedAt returns when the task was created.
func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

// Outcome is the result of executing one task at the worker boundary.
type Outcome struct {
	TaskID   uuid.UUID
	Name     string
	Err      error
	Duration time.Duration
	WorkerID int
}

// Success reports whether the action returned normally.
func (o Outcome) Success() bool {
	return o.Err == nil
}
