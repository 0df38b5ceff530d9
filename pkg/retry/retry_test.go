package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "postcrawler/pkg/errors"
)

func TestAttemptMultipleBackoff(t *testing.T) {
	backoff := AttemptMultiple(100 * time.Millisecond)

	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, backoff.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, backoff.NextDelay(2))
	assert.Equal(t, 300*time.Millisecond, backoff.NextDelay(3))
}

func TestLinearBackoffCap(t *testing.T) {
	backoff := &LinearBackoff{BaseDelay: time.Second, Increment: time.Second, MaxDelay: 2500 * time.Millisecond}
	assert.Equal(t, 2500*time.Millisecond, backoff.NextDelay(5))
}

func TestLinearBackoffJitterStaysInRange(t *testing.T) {
	backoff := &LinearBackoff{BaseDelay: 100 * time.Millisecond, Increment: 100 * time.Millisecond, JitterFactor: 0.2}
	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 160*time.Millisecond)
		assert.LessOrEqual(t, d, 240*time.Millisecond)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(func(attempt int) error {
		attempts++
		assert.Equal(t, attempts, attempt)
		if attempt < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     AlwaysRetry,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsWithoutTrailingWait(t *testing.T) {
	var waits []time.Duration
	attempts := 0

	err := Do(func(int) error {
		attempts++
		return errors.New("always fails")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     AttemptMultiple(time.Millisecond),
		RetryIf:     AlwaysRetry,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			waits = append(waits, delay)
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(func(int) error {
		attempts++
		return errs.New(errs.ErrorTypeChallenge, "verification required")
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{}, RetryIf: DefaultRetryIf})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errs.IsType(err, errs.ErrorTypeChallenge))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(func(int) error {
		attempts++
		cancel()
		return errors.New("fail")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     AlwaysRetry,
		Context:     ctx,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(context.DeadlineExceeded))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeNavigation, "timeout")))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeFormat, "bad cookies")))
}

func TestAlwaysRetryRetriesPerAttemptTimeouts(t *testing.T) {
	assert.True(t, AlwaysRetry(context.DeadlineExceeded))
	assert.False(t, AlwaysRetry(context.Canceled))
}

func TestDoWithResult(t *testing.T) {
	result, err := DoWithResult(func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("first fails")
		}
		return "loaded", nil
	}, &Config{MaxAttempts: 2, Backoff: &ConstantBackoff{}, RetryIf: AlwaysRetry})

	require.NoError(t, err)
	assert.Equal(t, "loaded", result)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
