// Package persist writes only previously unseen posts to the post store.
//
// Deduplication is an exact canonical URL lookup performed before every
// write. Stores do not carry a unique constraint, so re-running a crawl over
// the same source is safe only because of this check.
package persist

import (
	"context"
	"time"

	"postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/ratelimit"
	"postcrawler/pkg/store"
)

// Result reports what one PersistNew call did
type Result struct {
	SavedCount int
	SavedURLs  []string
	Skipped    int
	Errors     []error
}

// Persister is the deduplicating post writer
type Persister struct {
	store  store.PostStore
	pacer  ratelimit.Limiter
	logger logger.Logger
	now    func() time.Time
}

// New creates a persister; writes are spaced writeDelay apart
func New(s store.PostStore, writeDelay time.Duration, log logger.Logger) *Persister {
	return NewWithLimiter(s, ratelimit.NewPacer(writeDelay), log)
}

// NewWithLimiter creates a persister with a custom write limiter
func NewWithLimiter(s store.PostStore, limiter ratelimit.Limiter, log logger.Logger) *Persister {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Persister{
		store:  s,
		pacer:  limiter,
		logger: log,
		now:    time.Now,
	}
}

// PersistNew writes every post whose canonical URL is not yet stored.
// Store failures are recorded per post and never abort the batch.
func (p *Persister) PersistNew(ctx context.Context, posts []models.ExtractedPost, src models.SourceContext) Result {
	var res Result

	for _, post := range posts {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, errors.Wrap(errors.ErrorTypePersistence, "persist cancelled", ctx.Err()))
			break
		}

		exists, err := p.store.ExistsByURL(ctx, post.CanonicalURL)
		if err != nil {
			p.fail(&res, "existence check failed", post.CanonicalURL, err)
			continue
		}
		if exists {
			res.Skipped++
			p.logger.DebugWithFields("Post already stored", map[string]interface{}{"url": post.CanonicalURL})
			continue
		}

		if err := p.pacer.Wait(ctx); err != nil {
			p.fail(&res, "write pacing interrupted", post.CanonicalURL, err)
			break
		}

		if err := p.store.Create(ctx, models.NewStoredPost(post, src, p.now())); err != nil {
			p.fail(&res, "write failed", post.CanonicalURL, err)
			continue
		}

		res.SavedCount++
		res.SavedURLs = append(res.SavedURLs, post.CanonicalURL)
		p.logger.InfoWithFields("Post saved", map[string]interface{}{
			"url":    post.CanonicalURL,
			"author": src.AuthorName,
		})
	}

	return res
}

func (p *Persister) fail(res *Result, msg, url string, err error) {
	perr := errors.Wrap(errors.ErrorTypePersistence, msg, err).WithURL(url)
	res.Errors = append(res.Errors, perr)
	p.logger.WithError(err).WarnWithFields("Post skipped", map[string]interface{}{
		"url":    url,
		"reason": msg,
	})
}
