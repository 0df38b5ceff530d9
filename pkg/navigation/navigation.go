// Package navigation wraps page loads in the bounded linear-backoff retry
// policy every navigation in the pipeline goes through.
package navigation

import (
	"context"
	"fmt"
	"time"

	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/retry"
)

// Navigator loads a page and reports whether it ended up usable
type Navigator interface {
	GotoWithRetry(ctx context.Context, b browser.Browser, url string) bool
}

// Retrier performs page loads with up to MaxAttempts tries
type Retrier struct {
	maxAttempts int
	timeout     time.Duration
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// NewRetrier creates a retrier from the navigation settings
func NewRetrier(cfg config.NavigationConfig, log logger.Logger) *Retrier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	return &Retrier{
		maxAttempts: attempts,
		timeout:     cfg.Timeout,
		backoff:     retry.AttemptMultiple(cfg.BaseBackoff),
		logger:      log.WithField("component", "navigation"),
	}
}

// GotoWithRetry navigates to url, waiting attempt*base between failures.
// It returns false once attempts are exhausted and never returns an error.
func (r *Retrier) GotoWithRetry(ctx context.Context, b browser.Browser, url string) bool {
	err := retry.Do(func(attempt int) error {
		return r.attempt(ctx, b, url, attempt)
	}, &retry.Config{
		MaxAttempts: r.maxAttempts,
		Backoff:     r.backoff,
		RetryIf:     retry.AlwaysRetry,
		Context:     ctx,
	})
	if err != nil {
		r.logger.WithError(err).WarnWithFields("Navigation gave up", map[string]interface{}{
			"url":      url,
			"attempts": r.maxAttempts,
		})
		return false
	}
	return true
}

func (r *Retrier) attempt(ctx context.Context, b browser.Browser, url string, attempt int) error {
	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := b.Navigate(attemptCtx, url)
	if err != nil {
		logger.LogNavigation(r.logger, url, attempt, 0, false, time.Since(start))
		return errs.Wrap(errs.ErrorTypeNavigation, "page load failed", err).WithURL(url)
	}

	ok, cerr := r.classify(attemptCtx, b, resp)
	logger.LogNavigation(r.logger, url, attempt, resp.Status, ok, time.Since(start))
	if cerr != nil {
		return cerr.WithURL(url)
	}
	return nil
}

// classify accepts 2xx, or a loaded document when no status was observed
func (r *Retrier) classify(ctx context.Context, b browser.Browser, resp browser.Response) (bool, *errs.Error) {
	if resp.Status != 0 {
		if errs.IsSuccessStatus(resp.Status) {
			return true, nil
		}
		return false, errs.New(errs.ErrorTypeNavigation, fmt.Sprintf("unexpected status %d", resp.Status))
	}

	var state string
	if err := b.Evaluate(ctx, browser.ScriptReadyState, &state); err != nil {
		return false, errs.Wrap(errs.ErrorTypeNavigation, "no status and ready state unavailable", err)
	}
	if state == "complete" || state == "interactive" {
		return true, nil
	}
	return false, errs.New(errs.ErrorTypeNavigation, "document not loaded: "+state)
}
