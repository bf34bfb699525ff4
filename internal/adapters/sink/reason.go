package sink

import (
	"context"
	"errors"
	"net"

	"github.com/lib/pq"
	"google.golang.org/api/googleapi"
)

var (
	// ErrNotConfigured means the sink lacks credentials or identity; the gateway runs offline.
	ErrNotConfigured = errors.New("sink: not configured")
	// ErrRateLimited is returned when the local limiter gave up waiting.
	ErrRateLimited = errors.New("sink: rate limited")
)

// Failure reasons reported in logs. The pipeline only distinguishes success from failure.
const (
	ReasonAuth    = "auth"
	ReasonNetwork = "network"
	ReasonQuota   = "quota"
	ReasonUnknown = "unknown"
)

// Reason classifies a sink error for logging.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrRateLimited) {
		return ReasonQuota
	}
	if errors.Is(err, ErrNotConfigured) {
		return ReasonAuth
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == 401 || gErr.Code == 403:
			return ReasonAuth
		case gErr.Code == 429:
			return ReasonQuota
		case gErr.Code >= 500:
			return ReasonNetwork
		default:
			return ReasonUnknown
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28":
			return ReasonAuth
		case "08", "57":
			return ReasonNetwork
		case "53":
			return ReasonQuota
		default:
			return ReasonUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}
	return ReasonUnknown
}
