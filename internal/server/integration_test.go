package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	"postcrawler/pkg/crawler"
	"postcrawler/pkg/session"
	"postcrawler/pkg/store"
)

const (
	siteBase = "https://x.test"

	feedHTML = `<html><body>
<nav class="global-nav"></nav>
<div class="global-nav__me"></div>
<input class="search-global-typeahead__input"/>
</body></html>`

	activityHTML = `<html><body>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:%[1]d1">
  <div class="update-components-text">Quarterly update on the platform roadmap.</div>
  <time datetime="2026-03-01T10:00:00Z"></time>
  <a href="/feed/update/urn:li:activity:%[1]d1/">link</a>
</div>
<div class="feed-shared-update-v2" data-urn="urn:li:activity:%[1]d2">
  <div class="update-components-text">We are hiring backend engineers.</div>
  <a href="/feed/update/urn:li:activity:%[1]d2/">link</a>
</div>
</body></html>`
)

func newPipeline(t *testing.T) (*Server, *store.Memory, *browser.Fake) {
	t.Helper()

	site := browser.NewFake(map[string]browser.FakePage{
		siteBase + "/":                             {Status: 200, HTML: "<html></html>"},
		siteBase + "/feed/":                        {Status: 200, HTML: feedHTML, RedirectTo: siteBase + "/login", RequireCookie: "li_at"},
		siteBase + "/login":                        {Status: 200, HTML: "<html><form></form></html>"},
		siteBase + "/in/jane/recent-activity/all/": {Status: 200, HTML: fmt.Sprintf(activityHTML, 1)},
		siteBase + "/company/acme/posts/":          {Status: 200, HTML: fmt.Sprintf(activityHTML, 2)},
	})
	site.Failures[siteBase+"/in/ghost/recent-activity/all/"] = -1

	cfg := config.DefaultConfig()
	cfg.Platform.BaseURL = siteBase
	cfg.Session.SettleDelay = 0
	cfg.Session.ThinkTime = 0
	cfg.Navigation.BaseBackoff = time.Millisecond
	cfg.Extract.ScrollDelay = 0
	cfg.Crawl.WriteDelay = 0
	cfg.Crawl.InterSourceDelay = 0

	mem := store.NewMemory()
	c, err := crawler.New(crawler.Deps{
		Config:   cfg,
		Sources:  mem,
		Posts:    mem,
		RunLogs:  []store.RunLog{mem},
		Launcher: site.Launcher(nil),
		Material: session.Material{Cookies: fmt.Sprintf(
			`[{"name":"li_at","value":"tok","domain":".x.test","expirationDate":%d}]`,
			time.Now().AddDate(0, 3, 0).Unix())},
	})
	require.NoError(t, err)

	return newTestServer(t, c, mem, false), mem, site
}

func TestOnDemandCrawlEndToEnd(t *testing.T) {
	srv, mem, site := newPipeline(t)
	payload := `{"urls":["https://x.test/in/jane","https://x.test/company/acme","https://x.test/in/ghost"]}`

	rec, body := do(t, srv, http.MethodPost, "/crawl", secret, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["total_saved"])
	assert.Equal(t, string(session.Authenticated), body["auth_state"])

	results := body["results"].([]interface{})
	require.Len(t, results, 3)
	assert.Equal(t, true, results[0].(map[string]interface{})["success"])
	assert.Equal(t, true, results[1].(map[string]interface{})["success"])
	ghost := results[2].(map[string]interface{})
	assert.Equal(t, false, ghost["success"])
	assert.NotEmpty(t, ghost["error"])

	require.Len(t, mem.Posts(), 4)
	for _, p := range mem.Posts() {
		assert.Equal(t, "on-demand", p.Group)
		assert.Equal(t, "New", p.Status)
	}
	assert.True(t, site.Closed())

	// same request again finds nothing new
	rec, body = do(t, srv, http.MethodPost, "/crawl", secret, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["total_saved"])
	assert.Len(t, mem.Posts(), 4)

	rec, body = do(t, srv, http.MethodGet, "/runs", secret, "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := body["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, crawler.TriggerOnDemand, runs[0].(map[string]interface{})["trigger"])
}
