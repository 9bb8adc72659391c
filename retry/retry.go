// Package retry runs an operation until it succeeds, a classifier rules the
// failure permanent, or the attempt budget is spent. Delays between attempts
// grow exponentially, with optional jitter to spread out competing callers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	// MaxRetries caps how many times a failed attempt is repeated. The
	// operation itself runs at most MaxRetries+1 times.
	MaxRetries int
	// InitialBackoff is the delay after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier scales the delay after each failure.
	Multiplier float64
	// JitterFraction widens each delay by a random amount in
	// [-fraction*delay, +fraction*delay]. Zero disables jitter.
	JitterFraction float64
	// OnRetry, if set, runs before each backoff sleep with the retry number
	// (starting at 1), the error being retried, and the sleep duration.
	OnRetry func(attempt int, err error, sleep time.Duration)
}

// DefaultConfig returns the retry policy used when callers pass nothing.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// backoffFor returns the jittered delay after the given 1-based failed
// attempt.
func (c Config) backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxBackoff || d <= 0 {
		// d <= 0 means the exponent overflowed.
		d = c.MaxBackoff
	}
	if c.JitterFraction > 0 {
		spread := float64(d) * c.JitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread)
		if d > c.MaxBackoff {
			d = c.MaxBackoff
		}
		if d < 0 {
			d = 0
		}
	}
	return d
}

// ErrorClassifier reports whether an error is worth retrying.
type ErrorClassifier func(error) bool

// IsRetryable is the classifier used when callers pass nil: context
// cancellation is permanent, every other failure is assumed transient.
func IsRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do invokes fn until it returns nil, the classifier rules its error
// permanent, or MaxRetries+1 invocations have failed. Permanent errors come
// back unchanged; an exhausted budget comes back wrapped in *RetryableError.
// Context cancellation during a backoff sleep surfaces ctx.Err().
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err) {
			return err
		}
		if attempt > cfg.MaxRetries {
			return &RetryableError{Err: err, Retries: cfg.MaxRetries}
		}

		sleep := cfg.backoffFor(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// RetryableError reports an operation that was still failing when its retry
// budget ran out.
type RetryableError struct {
	Err     error
	Retries int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("still failing after %d retries: %v", e.Retries, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
