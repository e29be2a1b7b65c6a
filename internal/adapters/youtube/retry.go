package youtube

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/metrics"
)

// RetryConfig bounds the shared retry helper.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// withRetry is the single retry path for every fetch call site. Transient
// failures back off exponentially up to the attempt bound; quota and
// permanent classifications short-circuit immediately.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialBackoff
	exp.MaxInterval = cfg.MaxBackoff
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if domain.IsTransientFetch(err) {
			metrics.FetchRetriesTotal.Inc()
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
