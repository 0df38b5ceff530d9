// Package retry provides bounded retry with pluggable backoff.
//
// Page navigation uses AttemptMultiple, which waits attempt*base between tries
// (linear, no jitter) and never waits after the final attempt:
//
//	err := retry.Do(func(attempt int) error {
//		return load(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.AttemptMultiple(2 * time.Second),
//		RetryIf:     retry.AlwaysRetry,
//		Context:     ctx,
//	})
//
// DefaultRetryIf retries only navigation and persistence errors from pkg/errors,
// plus untyped errors, and never retries context cancellation.
package retry
