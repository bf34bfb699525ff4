// Package source holds helpers shared by the transport collectors.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

var (
	// ErrNotConfigured marks a collector whose configuration leaves nothing to watch.
	ErrNotConfigured = errors.New("source: not configured")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("source: already started")
)

// Emit hands r to out unless ctx ends first. A reading that fits in the buffer is always
// handed over, even after ctx ended.
func Emit(ctx context.Context, out chan<- *domain.Reading, r *domain.Reading) bool {
	select {
	case out <- r:
		return true
	default:
	}
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

// Sleep waits for d or until ctx ends; it reports whether the full delay elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// CleanPayload decodes transport bytes the lenient way: invalid UTF-8 is dropped and
// surrounding whitespace and NULs trimmed.
func CleanPayload(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	return strings.Trim(s, " \t\r\n\x00")
}
