// Package extract turns a source's rendered activity page into posts. Each
// field falls back through an ordered list of candidate selectors.
package extract

import (
	"context"
	"time"

	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/navigation"
	"postcrawler/pkg/retry"
	"postcrawler/pkg/selectors"
)

// Extractor borrows an authenticated browser to read posts from a source
type Extractor struct {
	cfg       config.ExtractConfig
	baseURL   string
	selectors selectors.Extract
	nav       navigation.Navigator
	logger    logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExtractor creates an extractor
func NewExtractor(cfg config.ExtractConfig, baseURL string, sel selectors.Extract, nav navigation.Navigator, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{
		cfg:       cfg,
		baseURL:   baseURL,
		selectors: sel,
		nav:       nav,
		logger:    log.WithField("component", "extract"),
		now:       time.Now,
		sleep:     retry.Wait,
	}
}

// Extract loads the activity surface of sourceURL, scrolls to trigger lazy
// loading and returns at most max posts. The browser is never closed here.
func (e *Extractor) Extract(ctx context.Context, b browser.Browser, sourceURL string, max int) ([]models.ExtractedPost, error) {
	if max <= 0 {
		max = e.cfg.MaxPosts
	}

	target, kind, err := ActivityURL(sourceURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "invalid source URL", err).WithURL(sourceURL)
	}

	log := e.logger.WithFields(map[string]interface{}{
		"url":  target,
		"kind": kind.String(),
	})

	if !e.nav.GotoWithRetry(ctx, b, target) {
		return nil, errs.New(errs.ErrorTypeNavigation, "activity page unreachable").WithURL(target)
	}

	cycles := e.cfg.ProfileScrolls
	if kind == KindOrganization {
		cycles = e.cfg.CompanyScrolls
	}
	if err := e.scroll(ctx, b, cycles, log); err != nil {
		return nil, err
	}

	html, err := b.HTML(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "rendered page unavailable", err).WithURL(target)
	}

	posts, stats, err := Parse(html, Options{
		Max:              max,
		MinContentLength: e.cfg.MinContentLength,
		MaxContentLength: e.cfg.MaxContentLength,
		BaseURL:          e.baseURL,
		Now:              e.now(),
		Selectors:        e.selectors,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeExtractionGap, "activity page unparseable", err).WithURL(target)
	}

	fields := map[string]interface{}{
		"selector":   stats.ContainerSelector,
		"containers": stats.Containers,
		"processed":  stats.Processed,
		"gaps":       stats.Gaps,
		"duplicates": stats.Duplicates,
		"posts":      len(posts),
	}
	if stats.ContainerSelector == "" {
		log.WarnWithFields("No post containers matched", fields)
	} else {
		log.InfoWithFields("Posts extracted", fields)
	}
	return posts, nil
}

// scroll runs a fixed number of scroll-and-wait cycles; a failed scroll only ends scrolling early
func (e *Extractor) scroll(ctx context.Context, b browser.Browser, cycles int, log logger.Logger) error {
	for i := 0; i < cycles; i++ {
		var height int
		if err := b.Evaluate(ctx, browser.ScriptScrollToBottom, &height); err != nil {
			log.WithError(err).Debug("Scroll failed, extracting what is rendered")
			return nil
		}
		if err := e.sleep(ctx, e.cfg.ScrollDelay); err != nil {
			return err
		}
	}
	return nil
}
