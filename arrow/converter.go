package arrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Common errors for conversion
var (
	ErrNoEntries     = errors.New("no entries to convert")
	ErrInvalidRecord = errors.New("invalid journal record")
)

// Converter handles EventLog entry to Arrow conversion.
type Converter struct {
	allocator memory.Allocator
	schema    *arrow.Schema
}

// NewConverter creates a new Converter with the default memory allocator.
func NewConverter() *Converter {
	return NewConverterWithAllocator(memory.DefaultAllocator)
}

// NewConverterWithAllocator creates a Converter using mem for all buffers.
func NewConverterWithAllocator(mem memory.Allocator) *Converter {
	return &Converter{
		allocator: mem,
		schema:    JournalSchema(),
	}
}

// Schema returns the journal schema.
func (c *Converter) Schema() *arrow.Schema {
	return c.schema
}

// EntriesToRecord converts entries to an Arrow Record.
// The caller must Release the record.
func (c *Converter) EntriesToRecord(entries []engine.Entry) (arrow.Record, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	builder := array.NewRecordBuilder(c.allocator, c.schema)
	defer builder.Release()

	seqBuilder := builder.Field(colSeq).(*array.Uint64Builder)
	tsBuilder := builder.Field(colTimestamp).(*array.Int64Builder)
	offBuilder := builder.Field(colOffset).(*array.Int32Builder)
	msgBuilder := builder.Field(colMessage).(*array.StringBuilder)
	kindBuilder := builder.Field(colKind).(*array.StringBuilder)
	taskBuilder := builder.Field(colTask).(*array.StringBuilder)

	for _, e := range entries {
		seqBuilder.Append(e.Seq)
		tsBuilder.Append(e.Timestamp.UnixNano())
		_, offset := e.Timestamp.Zone()
		offBuilder.Append(int32(offset))
		msgBuilder.Append(e.Message)

		if lc, ok := engine.ParseLifecycle(e.Message); ok {
			kindBuilder.Append(string(lc.Kind))
			taskBuilder.Append(lc.Task)
		} else {
			kindBuilder.AppendNull()
			taskBuilder.AppendNull()
		}
	}

	return builder.NewRecord(), nil
}

// RecordToEntries converts a journal record back to entries.
func (c *Converter) RecordToEntries(record arrow.Record) ([]engine.Entry, error) {
	if record == nil || record.NumRows() == 0 {
		return nil, nil
	}

	// Validate column count to prevent index out of bounds
	if record.NumCols() < numJournalCols {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidRecord, numJournalCols, record.NumCols())
	}

	seqCol, ok := record.Column(colSeq).(*array.Uint64)
	if !ok {
		return nil, fmt.Errorf("%w: seq column is %T", ErrInvalidRecord, record.Column(colSeq))
	}
	tsCol, ok := record.Column(colTimestamp).(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("%w: timestamp_ns column is %T", ErrInvalidRecord, record.Column(colTimestamp))
	}
	offCol, ok := record.Column(colOffset).(*array.Int32)
	if !ok {
		return nil, fmt.Errorf("%w: utc_offset_s column is %T", ErrInvalidRecord, record.Column(colOffset))
	}
	msgCol, ok := record.Column(colMessage).(*array.String)
	if !ok {
		return nil, fmt.Errorf("%w: message column is %T", ErrInvalidRecord, record.Column(colMessage))
	}

	n := int(record.NumRows())
	entries := make([]engine.Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = engine.Entry{
			Seq:       seqCol.Value(i),
			Timestamp: time.Unix(0, tsCol.Value(i)).In(zoneFor(offCol.Value(i))),
			Message:   msgCol.Value(i),
		}
	}
	return entries, nil
}

// zoneFor returns a location with the given offset. The zone name is not
// journaled, so only the offset survives a round trip.
func zoneFor(offset int32) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", int(offset))
}
