package arrow

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrNoRecords is returned when there is nothing to write or read.
var ErrNoRecords = errors.New("no records in IPC data")

// IPCWriter writes and reads Arrow record batches in IPC stream format.
type IPCWriter struct {
	allocator memory.Allocator
}

// NewIPCWriter creates a new IPCWriter.
func NewIPCWriter() *IPCWriter {
	return &IPCWriter{
		allocator: memory.DefaultAllocator,
	}
}

// WriteTo streams records to w. All records must share the first record's schema.
func (w *IPCWriter) WriteTo(out io.Writer, records []arrow.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	writer := ipc.NewWriter(out, ipc.WithSchema(records[0].Schema()), ipc.WithAllocator(w.allocator))
	defer writer.Close()

	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// ReadFrom reads every record from an IPC stream. The caller must Release them.
func (w *IPCWriter) ReadFrom(in io.Reader) ([]arrow.Record, error) {
	reader, err := ipc.NewReader(in, ipc.WithAllocator(w.allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		record := reader.Record()
		record.Retain() // the reader releases its reference on Next
		records = append(records, record)
	}

	if err := reader.Err(); err != nil {
		// Release any records we've already retained
		for _, r := range records {
			r.Release()
		}
		return nil, err
	}
	return records, nil
}

// SerializeToIPC serializes a single record to IPC bytes.
func (w *IPCWriter) SerializeToIPC(record arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.WriteTo(&buf, []arrow.Record{record}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeFromIPC deserializes the first record in IPC bytes.
func (w *IPCWriter) DeserializeFromIPC(data []byte) (arrow.Record, error) {
	records, err := w.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	for _, r := range records[1:] {
		r.Release()
	}
	return records[0], nil
}
