package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/session"
	"postcrawler/pkg/store"
)

const (
	base     = "https://x.test"
	feedURL  = base + "/feed/"
	loginURL = base + "/login"

	authedHTML = `<html><body>
<nav class="global-nav"></nav>
<div class="global-nav__me"></div>
<input class="search-global-typeahead__input"/>
</body></html>`

	loginHTML = `<html><body><form>
<input id="username"/><input id="password" type="password"/>
<button type="submit">Sign in</button>
</form></body></html>`
)

// two qualifying containers and one without text
const jdoeActivity = `<html><body>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:1">
  <div class="update-components-text">First post about distributed systems.</div>
  <time datetime="2026-03-01T10:00:00Z"></time>
  <a href="/feed/update/urn:li:activity:1/">link</a>
</div>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:2">
  <div class="update-components-text">Second post about hiring plans.</div>
  <a href="/feed/update/urn:li:activity:2/">link</a>
</div>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:3">
  <img src="https://media.x.test/only-an-image.jpg"/>
</div>
</body></html>`

func validCookies() string {
	return fmt.Sprintf(`[{"name":"li_at","value":"tok","domain":".x.test","expirationDate":%d}]`,
		time.Now().AddDate(0, 6, 0).Unix())
}

func activityURL(slug string) string {
	return base + "/in/" + slug + "/recent-activity/all/"
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Platform.BaseURL = base
	cfg.Session.SettleDelay = 0
	cfg.Session.ThinkTime = 0
	cfg.Session.LoginTimeout = time.Second
	cfg.Navigation.BaseBackoff = time.Millisecond
	cfg.Extract.ScrollDelay = 0
	cfg.Crawl.WriteDelay = 0
	return cfg
}

func newSite() *browser.Fake {
	return browser.NewFake(map[string]browser.FakePage{
		base + "/":            {Status: 200, HTML: "<html></html>"},
		feedURL:               {Status: 200, HTML: authedHTML, RedirectTo: loginURL, RequireCookie: "li_at"},
		loginURL:              {Status: 200, HTML: loginHTML},
		activityURL("jdoe"):   {Status: 200, HTML: jdoeActivity},
		activityURL("broken"): {Status: 200, HTML: jdoeActivity},
	})
}

type harness struct {
	crawler  *Crawler
	site     *browser.Fake
	mem      *store.Memory
	launches int
	sleeps   []time.Duration
	log      *logger.TestLogger
}

func newHarness(t *testing.T, material session.Material, sources ...models.Source) *harness {
	t.Helper()
	h := &harness{
		site: newSite(),
		mem:  store.NewMemory(sources...),
		log:  logger.NewTestLogger(),
	}
	c, err := New(Deps{
		Config:   testConfig(),
		Sources:  h.mem,
		Posts:    h.mem,
		RunLogs:  []store.RunLog{h.mem},
		Launcher: h.site.Launcher(&h.launches),
		Material: material,
		Logger:   h.log,
	})
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	h.crawler = c
	return h
}

func source(slug string, priority int) models.Source {
	return models.Source{
		ID:          slug,
		DisplayName: slug,
		TargetURL:   base + "/in/" + slug,
		Priority:    priority,
		Status:      models.SourceActive,
	}
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	mem := store.NewMemory()
	_, err = New(Deps{Config: testConfig(), Sources: mem, Posts: mem})
	assert.Error(t, err, "launcher is required")
}

func TestRunWithNoSourcesNeverLaunchesBrowser(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()})

	summary, err := h.crawler.Run(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SourcesTotal)
	assert.Equal(t, string(session.Unauthenticated), summary.AuthState)
	assert.Equal(t, TriggerSchedule, summary.Trigger)
	assert.Zero(t, h.launches)
	assert.Empty(t, h.site.Navigations())

	runs, err := h.mem.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
}

func TestRunSavesOnlyUnseenPosts(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()}, source("jdoe", 1))
	existing := models.NewStoredPost(models.ExtractedPost{
		Content:      "already stored",
		CanonicalURL: base + "/feed/update/urn:li:activity:1/",
	}, models.SourceContext{}, time.Now())
	require.NoError(t, h.mem.Create(context.Background(), existing))

	summary, err := h.crawler.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, TriggerManual, summary.Trigger)
	assert.Equal(t, string(session.Authenticated), summary.AuthState)
	assert.Equal(t, 1, summary.SourcesTotal)
	assert.Equal(t, 1, summary.SourcesSucceeded)
	assert.Equal(t, 1, summary.PostsNewTotal)
	require.Len(t, summary.PerSource, 1)
	res := summary.PerSource[0]
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{base + "/feed/update/urn:li:activity:2/"}, res.SavedURLs)

	posts := h.mem.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "jdoe", posts[1].AuthorName)
	assert.Equal(t, base+"/in/jdoe", posts[1].AuthorSourceURL)
	assert.Equal(t, models.PostStatusNew, posts[1].Status)

	assert.Equal(t, 1, h.launches)
	assert.True(t, h.site.Closed())
	assert.Empty(t, h.sleeps, "no delay after the last source")
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()}, source("jdoe", 1))

	first, err := h.crawler.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, first.PostsNewTotal)

	second, err := h.crawler.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PostsNewTotal)
	assert.Len(t, h.mem.Posts(), 2)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()},
		source("jdoe", 1), source("broken", 2), source("empty", 3))
	h.site.Failures[activityURL("broken")] = -1

	summary, err := h.crawler.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SourcesTotal)
	assert.Equal(t, 2, summary.SourcesSucceeded)
	assert.Equal(t, 1, summary.SourcesFailed)
	require.Len(t, summary.PerSource, 3)
	assert.False(t, summary.PerSource[1].Success)
	assert.Contains(t, summary.PerSource[1].Error, "navigation")
	assert.True(t, summary.PerSource[2].Success)
	assert.Equal(t, 0, summary.PerSource[2].Extracted)

	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, h.sleeps)
	assert.Equal(t, 1, h.launches, "one browser context per run")
	assert.True(t, h.site.Closed())
	assert.True(t, h.log.HasMessage("Source failed"))
}

func TestRunAbortsWithoutSession(t *testing.T) {
	h := newHarness(t, session.Material{}, source("jdoe", 1), source("jane", 2))

	summary, err := h.crawler.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrAuthentication)

	assert.Equal(t, string(session.Failed), summary.AuthState)
	assert.Equal(t, 2, summary.SourcesTotal)
	assert.Empty(t, summary.PerSource)
	assert.NotEmpty(t, summary.Error)
	assert.NotContains(t, h.site.Navigations(), loginURL)
	assert.True(t, h.site.Closed(), "browser is torn down on fatal errors")

	runs, _ := h.mem.RecentRuns(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.Error, runs[0].Error)
}

func TestRunSourceListUnavailable(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()})
	h.mem.SourcesErr = stderrors.New("table not found")

	summary, err := h.crawler.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, summary.Error, "table not found")
	assert.Zero(t, h.launches)
}

func TestRunLaunchFailure(t *testing.T) {
	mem := store.NewMemory(source("jdoe", 1))
	c, err := New(Deps{
		Config:  testConfig(),
		Sources: mem,
		Posts:   mem,
		Launcher: browser.LauncherFunc(func(ctx context.Context) (browser.Browser, error) {
			return nil, stderrors.New("chrome not found")
		}),
	})
	require.NoError(t, err)

	summary, err := c.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, summary.Error, "chrome not found")
}

func TestRunInterruptedBetweenSources(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()}, source("jdoe", 1), source("jane", 2))
	ctx, cancel := context.WithCancel(context.Background())
	h.crawler.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	summary, err := h.crawler.Run(ctx, TriggerManual)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, summary.PerSource, 1)
	assert.Contains(t, summary.Error, "after 1 of 2 sources")
	assert.True(t, h.site.Closed())

	runs, _ := h.mem.RecentRuns(context.Background(), 1)
	assert.Len(t, runs, 1, "cancelled runs are still recorded")
}

func TestRunRejectsOverlap(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()})
	h.crawler.running.Lock()
	defer h.crawler.running.Unlock()

	_, err := h.crawler.Run(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.crawler.CrawlURLs(context.Background(), []string{base + "/in/jdoe"}, 1)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestCrawlURLs(t *testing.T) {
	h := newHarness(t, session.Material{Cookies: validCookies()})

	summary, err := h.crawler.CrawlURLs(context.Background(), []string{base + "/in/jdoe"}, 1)
	require.NoError(t, err)
	assert.Equal(t, TriggerOnDemand, summary.Trigger)
	assert.Equal(t, 1, summary.SourcesTotal)
	require.Len(t, summary.PerSource, 1)
	assert.Equal(t, "jdoe", summary.PerSource[0].Name)
	assert.Equal(t, 1, summary.PerSource[0].Extracted)
	assert.Equal(t, 1, summary.PostsNewTotal)

	posts := h.mem.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "on-demand", posts[0].Group)

	_, err = h.crawler.CrawlURLs(context.Background(), nil, 0)
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))
}

func TestFreshCookiesArePersisted(t *testing.T) {
	h := newHarness(t, session.Material{Identifier: "user@example.com", Secret: "hunter22"}, source("jdoe", 1))
	h.site.SubmitURL = feedURL
	h.site.SubmitCookies = []browser.Cookie{{Name: "li_at", Value: "fresh", Domain: ".x.test"}}

	var got session.CookieSet
	h.crawler.onFresh = func(ctx context.Context, cookies session.CookieSet) error {
		got = cookies
		return nil
	}
	h.crawler.cfg.Crawl.PersistFreshCookies = true

	summary, err := h.crawler.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, string(session.Authenticated), summary.AuthState)
	_, ok := got.Find("li_at")
	assert.True(t, ok)
	assert.True(t, h.log.HasMessage("Fresh session cookies persisted"))
}

func TestNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://x.test/in/jdoe":                        "jdoe",
		"https://x.test/in/jdoe/recent-activity/all/":   "jdoe",
		"https://x.test/company/acme/posts/?feedView=1": "acme",
		"https://x.test/school/mit":                     "mit",
		"https://x.test/pub/other":                      "other",
		"https://x.test":                                "x.test",
		"not a url":                                     "not a url",
	}
	for in, want := range tests {
		assert.Equal(t, want, NameFromURL(in), in)
	}
}
