package ports

import "time"

type Policy struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"`
	SourceBuffer    int           `yaml:"source_buffer"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Backoff returns the delay before retry number attempt (starting at 1), doubling from
// RetryBackoff up to MaxRetryBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.RetryBackoff
	if base <= 0 {
		base = 2 * time.Second
	}
	limit := p.MaxRetryBackoff
	if limit < base {
		limit = base
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}
