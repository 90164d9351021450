package engine

import (
	"strings"
	"testing"
)

// FuzzParseLifecycle checks that lifecycle parsing never panics and that
// every recognised message round-trips through its kind's prefix.
// Run with: go test -fuzz=FuzzParseLifecycle -fuzztime=30s ./engine/
func FuzzParseLifecycle(f *testing.F) {
	f.Add(MsgTaskAdded + "Task 1")
	f.Add(MsgTaskExecuting + "Task 2")
	f.Add(MsgTaskCompleted + "Task 4")
	f.Add(MsgTaskError + "Task 3 - Something went wrong")
	f.Add(MsgTaskError + "a - b - c")
	f.Add(MsgTaskError)
	f.Add("")
	f.Add("Task added:")

	f.Fuzz(func(t *testing.T, message string) {
		lc, ok := ParseLifecycle(message)
		if !ok {
			if lc != (Lifecycle{}) {
				t.Fatalf("unrecognised message %q produced %+v", message, lc)
			}
			return
		}

		var rebuilt string
		switch lc.Kind {
		case KindAdded:
			rebuilt = MsgTaskAdded + lc.Task
		case KindExecuting:
			rebuilt = MsgTaskExecuting + lc.Task
		case KindCompleted:
			rebuilt = MsgTaskCompleted + lc.Task
		case KindFailed:
			rebuilt = MsgTaskError + lc.Task
			if strings.Contains(message[len(MsgTaskError):], " - ") {
				rebuilt += " - " + lc.Error
			}
		default:
			t.Fatalf("unknown kind %q", lc.Kind)
		}
		if rebuilt != message {
			t.Fatalf("round trip mismatch: %q -> %+v -> %q", message, lc, rebuilt)
		}
	})
}
