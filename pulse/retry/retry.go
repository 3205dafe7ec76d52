// Package retry retries collaborator calls that fail with a retryable error,
// waiting between attempts with capped exponential backoff and jitter.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

// Retryable is implemented by errors that know whether a retry may succeed.
// Errors that do not implement it are not retried.
type Retryable interface {
	Retryable() bool
}

// RetryAfterHinter is implemented by errors carrying a suggested delay.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// Policy controls attempts and delays.
type Policy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Cap for any single delay, including hints; 0 means no cap
	Jitter      float64       // Up to this fraction of the delay is added at random

	// Sleep waits between attempts; nil uses a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a number in [0,1); nil uses math/rand/v2.
	Rand func() float64
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is two attempts, 500ms base delay, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      0.5,
	}
}

// PolicyFromConfig builds a policy from the retry section of the config.
func PolicyFromConfig(cfg am.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelayMS >= 0 {
		p.BaseDelay = time.Duration(cfg.BaseDelayMS) * time.Millisecond
	}
	if cfg.MaxDelayMS > 0 {
		p.MaxDelay = time.Duration(cfg.MaxDelayMS) * time.Millisecond
	}
	return p
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return errors.Wrapf(e.Err, "gave up after %d attempts", e.Attempts).Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// IsRetryable reports whether err is marked retryable.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

// RetryAfter returns the delay hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var h RetryAfterHinter
	if errors.As(err, &h) && h.RetryAfterHint() > 0 {
		return h.RetryAfterHint(), true
	}
	return 0, false
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			if attempt == 1 {
				return zero, err
			}
			return zero, errors.WithDetailf(err, "attempt: %d of %d", attempt, attempts)
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, errors.Wrap(err, "retry wait interrupted")
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Delay returns the wait after the given failed attempt (1-based):
// BaseDelay doubled per attempt plus jitter, raised to the error's
// retry-after hint, and capped at MaxDelay.
func (p Policy) Delay(attempt int, err error) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && (p.MaxDelay <= 0 || d < p.MaxDelay) && d < math.MaxInt64/2; i++ {
		d *= 2
	}

	if p.Jitter > 0 && d > 0 {
		r := rand.Float64
		if p.Rand != nil {
			r = p.Rand
		}
		d += time.Duration(float64(d) * p.Jitter * r())
	}

	if hint, ok := RetryAfter(err); ok && hint > d {
		d = hint
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
