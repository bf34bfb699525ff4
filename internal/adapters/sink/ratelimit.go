package sink

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// RateLimited spaces appends so a burst of buffered records does not exhaust the remote
// write quota.
type RateLimited struct {
	next    ports.RemoteSink
	limiter *rate.Limiter
}

// NewRateLimited wraps next; a non-positive perSecond disables limiting and returns next.
func NewRateLimited(next ports.RemoteSink, perSecond float64, burst int) ports.RemoteSink {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Append(ctx context.Context, rec *domain.Record) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return r.next.Append(ctx, rec)
}
