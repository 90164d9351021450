package arrow

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Column indexes of JournalSchema.
const (
	colSeq = iota
	colTimestamp
	colOffset
	colMessage
	colKind
	colTask
	numJournalCols
)

// JournalSchema returns the Arrow schema for event log entries.
//
// Fields:
//   - seq: uint64 - Position in the log, starting at 1
//   - timestamp_ns: int64 - Unix timestamp in nanoseconds
//   - utc_offset_s: int32 - Zone offset of the recorded timestamp in seconds
//   - message: string - Message text without timestamp
//   - kind: string (nullable) - Lifecycle kind, null for other messages
//   - task: string (nullable) - Task name, null for other messages
func JournalSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "seq", Type: arrow.PrimitiveTypes.Uint64, Nullable: false},
			{Name: "timestamp_ns", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
			{Name: "utc_offset_s", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
			{Name: "message", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: true},
			{Name: "task", Type: arrow.BinaryTypes.String, Nullable: true},
		},
		nil,
	)
}
