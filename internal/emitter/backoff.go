package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backoff contains configuration for exponential backoff connection retries
type Backoff struct {
	MaxRetries int           // Maximum number of retries after the first attempt (default: 5)
	Delay      time.Duration // Initial retry delay (default: 1 second)
	MaxDelay   time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultBackoff returns the default retry configuration
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries: 5,
		Delay:      1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// retry runs fn until it succeeds, retries are exhausted or ctx is done.
//
// Exponential backoff schedule (default config):
//   - Retry 1: 1 second
//   - Retry 2: 2 seconds
//   - Retry 3: 4 seconds
//   - Retry 4: 8 seconds
//   - Retry 5: 16 seconds
func retry(ctx context.Context, cfg Backoff, logger *slog.Logger, fn func() error) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		attempt++
		if attempt > cfg.MaxRetries {
			return fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := backoffDelay(attempt, cfg)
		logger.Warn("emitter: retrying connection",
			"attempt", attempt,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoffDelay returns delay * 2^(attempt-1), capped at MaxDelay.
func backoffDelay(attempt int, cfg Backoff) time.Duration {
	delay := cfg.Delay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
