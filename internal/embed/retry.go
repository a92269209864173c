package embed

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures bounded exponential backoff for embedder batch calls
//.
type RetryConfig struct {
	MaxRetries   int           // Maximum number of retry attempts (not including initial attempt)
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the defaults: 3 retries after the initial
// attempt (4 attempts in all), base 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultRetryBaseDelay,
		MaxDelay:     DefaultRetryMaxDelay,
		Multiplier:   2.0,
	}
}

// WithRetry executes fn with exponential backoff, retrying up to cfg.MaxRetries
// times. Context cancellation aborts immediately without waiting out the delay.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			lastErr = err
			if attempt >= cfg.MaxRetries {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("embedder call failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
