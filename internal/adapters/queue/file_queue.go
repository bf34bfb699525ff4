package queue

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// FileQueue is a CSV-backed DurableQueue. The file is created on the first append and
// removed by Clear; every append is fsynced before it returns. A FileQueue owns its file:
// a second FileQueue on the same path, in this or another process, fails with
// ErrQueueLocked until Close.
type FileQueue struct {
	mu    sync.Mutex
	path  string
	lock  *flock.Flock
	count int
	// size is the end offset of the last complete row.
	size int64
}

// NewFileQueue opens (without creating) the queue at path, dropping a torn trailing row
// left by a crash mid-append.
func NewFileQueue(path string) (*FileQueue, error) {
	if path == "" {
		return nil, fmt.Errorf("queue path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueIO, err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %v", ErrQueueIO, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueLocked, path)
	}

	q := &FileQueue{path: path, lock: lock}
	if err := q.bootstrap(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return q, nil
}

// Path returns the backing file location.
func (q *FileQueue) Path() string { return q.path }

// Close releases the ownership lock. Queued records stay on disk.
func (q *FileQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.lock.Unlock(); err != nil {
		return fmt.Errorf("%w: unlock: %v", ErrQueueIO, err)
	}
	return nil
}

func (q *FileQueue) bootstrap() error {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueIO, err)
	}

	keep, rows, err := scanRows(data)
	if err != nil {
		return err
	}
	if keep < int64(len(data)) {
		if err := os.Truncate(q.path, keep); err != nil {
			return fmt.Errorf("%w: truncate torn row: %v", ErrQueueIO, err)
		}
	}
	q.count = len(rows)
	q.size = keep
	return nil
}

func (q *FileQueue) Append(r *domain.Record) error {
	row, err := encodeRow(r)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open: %v", ErrQueueIO, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: stat: %v", ErrQueueIO, err)
	}

	base := stat.Size()
	if base > q.size {
		// Leftover of an append that failed halfway.
		if err := f.Truncate(q.size); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: truncate partial row: %v", ErrQueueIO, err)
		}
		base = q.size
	}

	fail := func(op string, err error) error {
		_ = f.Truncate(base)
		_ = f.Close()
		return fmt.Errorf("%w: %s: %v", ErrQueueIO, op, err)
	}

	w := csv.NewWriter(f)
	if base == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fail("seek", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrQueueIO, err)
	}

	q.count++
	q.size = end
	return nil
}

func (q *FileQueue) ReadAll() ([]*domain.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readAllLocked()
}

func (q *FileQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clearLocked()
}

func (q *FileQueue) Pending() bool {
	return q.Len() > 0
}

func (q *FileQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Exclusive holds the queue lock for the whole of fn; appends wait until it returns.
func (q *FileQueue) Exclusive(fn func(tx ports.QueueTx) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fn(fileTx{q})
}

func (q *FileQueue) readAllLocked() ([]*domain.Record, error) {
	f, err := os.Open(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrQueueIO, err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func decodeRows(rows [][]string) ([]*domain.Record, error) {
	out := make([]*domain.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (q *FileQueue) clearLocked() error {
	if err := os.Remove(q.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", ErrQueueIO, err)
	}
	q.count = 0
	q.size = 0
	return nil
}

// ReadFile decodes the queue file at path without taking ownership or repairing it, for
// read-only tools running next to a live gateway. A row still being written is skipped.
func ReadFile(path string) ([]*domain.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueIO, err)
	}
	_, rows, err := scanRows(data)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// readRows returns every data row, skipping the header.
func readRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueIO, err)
	}
	_, rows, err := scanRows(data)
	return rows, err
}

// scanRows parses data as CSV and returns the data rows plus the offset just past the last
// newline-terminated row. A final row cut off by a crash, including one inside a quoted
// multi-line field, is left out of both.
func scanRows(data []byte) (int64, [][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	var (
		rows  [][]string
		good  int64
		first = true
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return good, rows, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrQuote) &&
				cr.InputOffset() == int64(len(data)) && openQuote(data[good:]) {
				return good, rows, nil
			}
			return 0, nil, fmt.Errorf("%w: %v", ErrCorruptQueue, err)
		}
		end := cr.InputOffset()
		if end == 0 || end > int64(len(data)) || data[end-1] != '\n' {
			return good, rows, nil
		}
		good = end
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		rows = append(rows, row)
	}
}

// openQuote reports a quoted field that never closes before EOF.
func openQuote(b []byte) bool {
	return bytes.Count(b, []byte{'"'})%2 == 1
}

type fileTx struct{ q *FileQueue }

func (t fileTx) ReadAll() ([]*domain.Record, error) { return t.q.readAllLocked() }
func (t fileTx) Clear() error                       { return t.q.clearLocked() }

var _ ports.DurableQueue = (*FileQueue)(nil)
