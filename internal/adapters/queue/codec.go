package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

// Header is the first row of every queue file.
var Header = []string{"ts_utc", "value", "raw", "metadata"}

var (
	// ErrQueueIO wraps storage failures of the backing file.
	ErrQueueIO = errors.New("queue: storage i/o")
	// ErrCorruptQueue is returned when a stored row cannot be decoded.
	ErrCorruptQueue = errors.New("queue: corrupt record")
	// ErrQueueLocked means another FileQueue, usually a running gateway, owns the file.
	ErrQueueLocked = errors.New("queue: in use by another process")
)

func encodeRow(r *domain.Record) ([]string, error) {
	if !r.HasValue() {
		return nil, fmt.Errorf("encode record: missing value")
	}
	meta, err := r.Metadata.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return []string{r.TimestampText(), r.ValueText(), r.Raw, meta}, nil
}

// decodeRow tolerates extra trailing columns and a missing metadata column.
func decodeRow(row []string) (*domain.Record, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("%w: %d fields", ErrCorruptQueue, len(row))
	}
	ts, err := time.ParseInLocation(domain.TimestampLayout, strings.TrimSpace(row[0]), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q: %v", ErrCorruptQueue, row[0], err)
	}
	val, _, err := apd.NewFromString(strings.TrimSpace(row[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: value %q: %v", ErrCorruptQueue, row[1], err)
	}

	rec := &domain.Record{Timestamp: ts, Value: val}
	if len(row) > 2 {
		rec.Raw = row[2]
	}
	if len(row) > 3 {
		raw := strings.TrimSpace(row[3])
		meta, err := domain.ParseMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %q: %v", ErrCorruptQueue, raw, err)
		}
		rec.Metadata = meta
	}
	return rec, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.TrimSpace(row[0]) == Header[0]
}
