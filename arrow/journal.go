package arrow

import (
	"bufio"
	"fmt"
	"os"

	"github.com/VanDung-dev/TaskDrain-Engine/engine"
	"github.com/apache/arrow-go/v18/arrow"
)

// DefaultBatchSize is the number of entries per record batch in a journal.
const DefaultBatchSize = 1024

// Journal writes EventLog entries to Arrow IPC stream files.
type Journal struct {
	converter *Converter
	ipc       *IPCWriter
	batchSize int
}

// NewJournal creates a Journal. batchSize <= 0 uses DefaultBatchSize.
func NewJournal(batchSize int) *Journal {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Journal{
		converter: NewConverter(),
		ipc:       NewIPCWriter(),
		batchSize: batchSize,
	}
}

// Write writes entries to path, one record batch per batchSize entries.
func (j *Journal) Write(path string, entries []engine.Entry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}

	records := make([]arrow.Record, 0, (len(entries)+j.batchSize-1)/j.batchSize)
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	for start := 0; start < len(entries); start += j.batchSize {
		end := min(start+j.batchSize, len(entries))
		record, err := j.converter.EntriesToRecord(entries[start:end])
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create journal %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := j.ipc.WriteTo(w, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return f.Close()
}

// Read loads all entries from a journal file.
func (j *Journal) Read(path string) ([]engine.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	defer f.Close()

	records, err := j.ipc.ReadFrom(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	var entries []engine.Entry
	for _, record := range records {
		batch, err := j.converter.RecordToEntries(record)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

// WriteJournal writes entries to path with DefaultBatchSize.
func WriteJournal(path string, entries []engine.Entry) error {
	return NewJournal(DefaultBatchSize).Write(path, entries)
}

// ReadJournal reads all entries from path.
func ReadJournal(path string) ([]engine.Entry, error) {
	return NewJournal(DefaultBatchSize).Read(path)
}
