package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

type upstreamError struct {
	retryable  bool
	retryAfter time.Duration
}

func (e *upstreamError) Error() string { return fmt.Sprintf("upstream (retryable=%v)", e.retryable) }
func (e *upstreamError) Retryable() bool { return e.retryable }
func (e *upstreamError) RetryAfterHint() time.Duration { return e.retryAfter }

// testPolicy records sleeps instead of waiting.
func testPolicy(slept *[]time.Duration) Policy {
	p := DefaultPolicy()
	p.Rand = func() float64 { return 0 }
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return p
}

func TestDo_RetryableThenSuccess(t *testing.T) {
	var slept []time.Duration
	calls := 0

	v, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &upstreamError{retryable: true}
		}
		return "scored", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "scored", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, slept)
}

func TestDo_NonRetryableCalledOnce(t *testing.T) {
	var slept []time.Duration
	calls := 0

	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, &upstreamError{retryable: false}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
	assert.False(t, IsExhausted(err))
}

func TestDo_PlainErrorsAreNotRetried(t *testing.T) {
	var slept []time.Duration
	calls := 0
	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("bad prompt")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	var slept []time.Duration
	calls := 0
	cause := &upstreamError{retryable: true}

	_, err := Do(context.Background(), testPolicy(&slept), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.Wrap(cause, "score candidate")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, IsExhausted(err))
	var ue *upstreamError
	assert.True(t, errors.As(err, &ue))
	assert.Contains(t, err.Error(), "gave up after 2 attempts")
}

func TestDo_CancelledWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.BaseDelay = time.Hour
	p.MaxDelay = time.Hour

	calls := 0
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &upstreamError{retryable: true}
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second, Jitter: 0.5, Rand: func() float64 { return 1 }}
	plain := errors.New("x")

	assert.Equal(t, 750*time.Millisecond, p.Delay(1, plain))
	assert.Equal(t, 1500*time.Millisecond, p.Delay(2, plain))
	assert.Equal(t, 3*time.Second, p.Delay(3, plain), "capped")
	assert.Equal(t, 3*time.Second, p.Delay(10, plain), "capped")

	// Retry-after hints raise the delay but never past the cap
	assert.Equal(t, 2*time.Second, p.Delay(1, &upstreamError{retryable: true, retryAfter: 2 * time.Second}))
	assert.Equal(t, 3*time.Second, p.Delay(1, &upstreamError{retryable: true, retryAfter: time.Minute}))

	// No cap still backs off exponentially
	uncapped := Policy{BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, uncapped.Delay(1, plain))
	assert.Equal(t, 200*time.Millisecond, uncapped.Delay(2, plain))
	assert.Equal(t, 800*time.Millisecond, uncapped.Delay(4, plain))
	assert.Positive(t, uncapped.Delay(200, plain), "doubling stops before overflow")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.Wrap(&upstreamError{retryable: true}, "wrapped")))
	assert.False(t, IsRetryable(&upstreamError{retryable: false}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(am.RetryConfig{MaxAttempts: 3, BaseDelayMS: 100, MaxDelayMS: 1000})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.BaseDelay)
	assert.Equal(t, time.Second, p.MaxDelay)
}
