package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/solana"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// RemoteFailure is returned when a remote operation failed on every attempt.
type RemoteFailure struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds how often a remote operation is attempted and how long
// to wait between attempts. The zero value is usable and behaves like
// DefaultRetryPolicy without logging or metrics.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	Sleep   SleepFunc
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait before the next attempt after failed attempt i (0-indexed).
func (p RetryPolicy) Delay(i int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	d := base
	for ; i > 0 && d < maxDelay; i-- {
		d *= 2
	}
	return min(d, maxDelay)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (p RetryPolicy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Retry runs fn until it succeeds or the policy's attempts are used up.
// Context errors are returned immediately and never retried. After the last
// failed attempt the error is wrapped in a *RemoteFailure.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if attempt > 0 {
			delay := p.Delay(attempt - 1)
			reason := "error"
			if solana.IsRateLimited(lastErr) {
				reason = "rate_limit"
			}
			p.logger().WarnContext(ctx, "remote call failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"max_attempts", attempts,
				"backoff_ms", delay.Milliseconds(),
				"reason", reason,
				"error", lastErr,
			)
			p.Metrics.RecordRPCRetry(op, reason)
			if err := p.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
	}

	p.Metrics.RecordRPCRetryExhausted(op)
	return zero, &RemoteFailure{Op: op, Attempts: attempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
