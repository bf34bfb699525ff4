package ports

import (
	"context"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

// RemoteSink appends single records to the remote tabular store.
// A nil error means the remote side accepted the row; retries may duplicate rows.
type RemoteSink interface {
	Append(ctx context.Context, r *domain.Record) error
	Name() string
}

// SinkFactory initializes a RemoteSink. A failure leaves the session offline.
type SinkFactory func(ctx context.Context) (RemoteSink, error)
