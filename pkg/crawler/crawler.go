package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/extract"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/navigation"
	"postcrawler/pkg/persist"
	"postcrawler/pkg/retry"
	"postcrawler/pkg/selectors"
	"postcrawler/pkg/session"
	"postcrawler/pkg/store"
)

// Run triggers
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerOnDemand = "on_demand"
)

// ErrBusy is returned when a run is requested while another is in progress
var ErrBusy = stderrors.New("a crawl run is already in progress")

// FreshCookiesFunc receives the cookies produced by a credential login
type FreshCookiesFunc func(ctx context.Context, cookies session.CookieSet) error

// Deps are the collaborators of a Crawler
type Deps struct {
	Config   *config.Config
	Sources  store.SourceFeed
	Posts    store.PostStore
	RunLogs  []store.RunLog
	Launcher browser.Launcher
	Material session.Material

	// Selectors default to the compiled-in lists
	Selectors *selectors.Set
	Logger    logger.Logger

	// OnFreshCookies is called after a successful credential login when
	// crawl.persist_fresh_cookies is enabled
	OnFreshCookies FreshCookiesFunc
}

// Crawler orchestrates crawl runs. Runs never overlap.
type Crawler struct {
	cfg       *config.Config
	sources   store.SourceFeed
	runLogs   []store.RunLog
	launcher  browser.Launcher
	material  session.Material
	selectors *selectors.Set
	nav       navigation.Navigator
	extractor *extract.Extractor
	persister *persist.Persister
	onFresh   FreshCookiesFunc
	logger    logger.Logger

	running sync.Mutex
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a crawler
func New(d Deps) (*Crawler, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("crawler: config is required")
	}
	if d.Sources == nil || d.Posts == nil {
		return nil, fmt.Errorf("crawler: source feed and post store are required")
	}
	if d.Launcher == nil {
		return nil, fmt.Errorf("crawler: browser launcher is required")
	}
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Selectors == nil {
		d.Selectors = selectors.Default()
	}

	log := d.Logger.WithField("component", "crawler")
	nav := navigation.NewRetrier(d.Config.Navigation, d.Logger)

	return &Crawler{
		cfg:       d.Config,
		sources:   d.Sources,
		runLogs:   d.RunLogs,
		launcher:  d.Launcher,
		material:  d.Material,
		selectors: d.Selectors,
		nav:       nav,
		extractor: extract.NewExtractor(d.Config.Extract, d.Config.Platform.BaseURL, d.Selectors.Extract, nav, d.Logger),
		persister: persist.New(d.Posts, d.Config.Crawl.WriteDelay, d.Logger),
		onFresh:   d.OnFreshCookies,
		logger:    log,
		now:       time.Now,
		sleep:     retry.Wait,
	}, nil
}

// Run crawls every Active source. The returned summary is never nil; err is
// set when the run ended early.
func (c *Crawler) Run(ctx context.Context, trigger string) (*models.RunSummary, error) {
	if !c.running.TryLock() {
		return nil, ErrBusy
	}
	defer c.running.Unlock()

	summary := c.newSummary(trigger)
	log := c.logger.WithField("run_id", summary.RunID)

	sources, err := c.sources.ActiveSources(ctx)
	if err != nil {
		err = fmt.Errorf("list active sources: %w", err)
		summary.Error = err.Error()
		log.WithError(err).Error("Cannot enumerate sources")
		c.finish(ctx, summary, log)
		return summary, err
	}

	summary.SourcesTotal = len(sources)
	if len(sources) == 0 {
		log.Info("No active sources, nothing to crawl")
		c.finish(ctx, summary, log)
		return summary, nil
	}

	err = c.crawl(ctx, summary, sources, 0, log)
	c.finish(ctx, summary, log)
	return summary, err
}

// CrawlURLs crawls the given source URLs on demand, saving at most max posts
// per URL (max <= 0 uses the configured default)
func (c *Crawler) CrawlURLs(ctx context.Context, urls []string, max int) (*models.RunSummary, error) {
	if len(urls) == 0 {
		return nil, errs.New(errs.ErrorTypeConfig, "no URLs to crawl")
	}
	if !c.running.TryLock() {
		return nil, ErrBusy
	}
	defer c.running.Unlock()

	summary := c.newSummary(TriggerOnDemand)
	log := c.logger.WithField("run_id", summary.RunID)

	sources := make([]models.Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, models.Source{
			DisplayName: NameFromURL(u),
			TargetURL:   u,
			Group:       c.cfg.Store.OnDemandGroup,
			Status:      models.SourceActive,
		})
	}
	summary.SourcesTotal = len(sources)

	err := c.crawl(ctx, summary, sources, max, log)
	c.finish(ctx, summary, log)
	return summary, err
}

func (c *Crawler) newSummary(trigger string) *models.RunSummary {
	if trigger == "" {
		trigger = TriggerManual
	}
	return &models.RunSummary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: c.now(),
		AuthState: string(session.Unauthenticated),
	}
}

// crawl owns one browser context for the whole source list
func (c *Crawler) crawl(ctx context.Context, summary *models.RunSummary, sources []models.Source, max int, log logger.Logger) (err error) {
	b, err := c.launcher.Launch(ctx)
	if err != nil {
		err = fmt.Errorf("launch browser: %w", err)
		summary.Error = err.Error()
		log.WithError(err).Error("Browser launch failed")
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			log.WithError(cerr).Warn("Browser teardown failed")
		}
	}()

	auth := session.NewAuthenticator(c.cfg, c.material, c.nav, c.selectors.Session, log)
	res, err := auth.Establish(ctx, b)
	summary.AuthState = string(res.State)
	if err != nil {
		summary.Error = err.Error()
		log.WithError(err).ErrorWithFields("Authentication failed, run aborted", map[string]interface{}{
			"state": string(res.State),
		})
		return err
	}
	if res.Expiry != nil {
		log.InfoWithFields("Session established", map[string]interface{}{
			"expiry": res.Expiry.String(),
		})
	}
	c.storeFreshCookies(ctx, res, log)

	for i, src := range sources {
		result := c.crawlSource(ctx, b, src, max, log)
		summary.Add(result)

		if i == len(sources)-1 {
			break
		}
		if err := c.sleep(ctx, c.cfg.Crawl.InterSourceDelay); err != nil {
			summary.Error = fmt.Sprintf("run interrupted after %d of %d sources: %v", i+1, len(sources), err)
			log.WithError(err).Warn("Run interrupted")
			return err
		}
	}
	return nil
}

// crawlSource never fails the run; every problem lands in the SourceResult
func (c *Crawler) crawlSource(ctx context.Context, b browser.Browser, src models.Source, max int, log logger.Logger) models.SourceResult {
	start := c.now()
	result := models.SourceResult{
		SourceID: src.ID,
		Name:     src.DisplayName,
		URL:      src.TargetURL,
	}

	posts, err := c.extractor.Extract(ctx, b, src.TargetURL, max)
	if err != nil {
		result.Error = err.Error()
		result.Duration = c.now().Sub(start)
		logger.LogSourceResult(log, src.DisplayName, 0, 0, err)
		return result
	}

	saved := c.persister.PersistNew(ctx, posts, src.Context())
	result.Success = true
	result.Extracted = len(posts)
	result.Saved = saved.SavedCount
	result.SavedURLs = saved.SavedURLs
	result.Skipped = saved.Skipped
	for _, perr := range saved.Errors {
		result.Errors = append(result.Errors, perr.Error())
	}
	result.Duration = c.now().Sub(start)

	logger.LogSourceResult(log, src.DisplayName, result.Extracted, result.Saved, nil)
	return result
}

func (c *Crawler) storeFreshCookies(ctx context.Context, res *session.Result, log logger.Logger) {
	if len(res.FreshCookies) == 0 || c.onFresh == nil || !c.cfg.Crawl.PersistFreshCookies {
		return
	}
	if err := c.onFresh(ctx, res.FreshCookies); err != nil {
		log.WithError(err).Warn("Failed to persist fresh session cookies")
		return
	}
	log.InfoWithFields("Fresh session cookies persisted", map[string]interface{}{
		"cookies": len(res.FreshCookies),
	})
}

// finish stamps the summary and records it in every run log
func (c *Crawler) finish(ctx context.Context, summary *models.RunSummary, log logger.Logger) {
	summary.FinishedAt = c.now()

	// a cancelled run is still recorded
	recordCtx := context.WithoutCancel(ctx)
	for _, rl := range c.runLogs {
		if err := rl.AppendRun(recordCtx, summary); err != nil {
			log.WithError(err).Warn("Failed to record run summary")
		}
	}

	logger.LogRunSummary(log, summary.RunID, summary.SourcesTotal, summary.SourcesSucceeded,
		summary.SourcesFailed, summary.PostsNewTotal, summary.Duration())
}

// NameFromURL derives a display name from a profile or organization URL
func NameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i, p := range parts {
		switch strings.ToLower(p) {
		case "in", "company", "school", "showcase":
			if i+1 < len(parts) {
				if name, err := url.PathUnescape(parts[i+1]); err == nil {
					return name
				}
				return parts[i+1]
			}
		}
	}
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return u.Host
}
