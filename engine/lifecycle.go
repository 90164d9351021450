package engine

import "strings"

// EventKind classifies a lifecycle message.
type EventKind string

const (
	KindAdded     EventKind = "added"
	KindExecuting EventKind = "executing"
	KindCompleted EventKind = "completed"
	KindFailed    EventKind = "failed"
)

// Lifecycle is a parsed lifecycle message.
type Lifecycle struct {
	Kind  EventKind
	Task  string
	Error string
}

// ParseLifecycle parses one of the four lifecycle message shapes.
// ok is false for any other message.
//
// For failures the task name ends at the first " - ", so a task name
// containing that separator is split early.
func ParseLifecycle(message string) (lc Lifecycle, ok bool) {
	switch {
	case strings.HasPrefix(message, MsgTaskAdded):
		return Lifecycle{Kind: KindAdded, Task: message[len(MsgTaskAdded):]}, true
	case strings.HasPrefix(message, MsgTaskExecuting):
		return Lifecycle{Kind: KindExecuting, Task: message[len(MsgTaskExecuting):]}, true
	case strings.HasPrefix(message, MsgTaskCompleted):
		return Lifecycle{Kind: KindCompleted, Task: message[len(MsgTaskCompleted):]}, true
	case strings.HasPrefix(message, MsgTaskError):
		rest := message[len(MsgTaskError):]
		name, errText, _ := strings.Cut(rest, " - ")
		return Lifecycle{Kind: KindFailed, Task: name, Error: errText}, true
	}
	return Lifecycle{}, false
}
