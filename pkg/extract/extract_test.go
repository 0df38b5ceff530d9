package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/navigation"
	"postcrawler/pkg/selectors"
)

var crawlTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func parseOptions(max int) Options {
	return Options{
		Max:              max,
		MinContentLength: 10,
		MaxContentLength: 1000,
		BaseURL:          "https://x.test",
		Now:              crawlTime,
		Selectors:        selectors.Default().Extract,
	}
}

func TestActivityURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		kind Kind
	}{
		{"https://x.test/in/jdoe", "https://x.test/in/jdoe/recent-activity/all/", KindProfile},
		{"https://x.test/in/jdoe/", "https://x.test/in/jdoe/recent-activity/all/", KindProfile},
		{"https://x.test/in/jdoe/recent-activity/all/", "https://x.test/in/jdoe/recent-activity/all/", KindProfile},
		{"https://x.test/in/jdoe/recent-activity/shares", "https://x.test/in/jdoe/recent-activity/shares/", KindProfile},
		{"https://x.test/in/jdoe/details/experience/?x=1", "https://x.test/in/jdoe/recent-activity/all/", KindProfile},
		{"https://x.test/company/acme", "https://x.test/company/acme/posts/", KindOrganization},
		{"https://x.test/company/acme/about/", "https://x.test/company/acme/posts/", KindOrganization},
		{"https://x.test/company/acme/posts/", "https://x.test/company/acme/posts/", KindOrganization},
		{"https://x.test/school/uni", "https://x.test/school/uni/posts/", KindOrganization},
		{"https://x.test/feed/", "https://x.test/feed/", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, kind, err := ActivityURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, kind)
		})
	}

	_, _, err := ActivityURL("/in/jdoe")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	posts, stats, err := Parse(activityHTML, parseOptions(10))
	require.NoError(t, err)

	assert.Equal(t, "div.feed-shared-update-v2", stats.ContainerSelector)
	assert.Equal(t, 6, stats.Containers)
	assert.Equal(t, 6, stats.Processed)
	assert.Equal(t, 2, stats.Gaps)
	assert.Equal(t, 1, stats.Duplicates)
	require.Len(t, posts, 3)

	first := posts[0]
	assert.Equal(t, "Shipping the new ingestion pipeline today. Thanks to everyone involved!", first.Content)
	assert.Equal(t, "https://x.test/feed/update/urn:li:activity:7001/", first.CanonicalURL)
	assert.Equal(t, time.Date(2026, 2, 27, 9, 30, 0, 0, time.UTC), first.PublishedAt)
	assert.False(t, first.TimestampApproximate)
	assert.Equal(t, 1204, first.LikeCount)
	assert.Equal(t, 37, first.CommentCount)
	assert.True(t, first.HasMedia)
	assert.Equal(t, "https://media.x.test/image/abc.jpg", first.MediaURL)

	second := posts[1]
	assert.Equal(t, "Hiring two backend engineers in Lisbon.", second.Content)
	assert.Equal(t, "https://x.test/feed/update/urn:li:activity:7002/", second.CanonicalURL)
	assert.True(t, second.TimestampApproximate)
	assert.Equal(t, crawlTime, second.PublishedAt)
	assert.Equal(t, 58, second.LikeCount)
	assert.Equal(t, 0, second.CommentCount)
	assert.True(t, second.HasMedia)
	assert.Equal(t, "https://media.x.test/poster.jpg", second.MediaURL)

	third := posts[2]
	assert.Equal(t, "https://x.test/posts/acme_conference-activity-7004-abcd", third.CanonicalURL)
	assert.True(t, third.TimestampApproximate)
	assert.Zero(t, third.LikeCount)
	assert.False(t, third.HasMedia)
}

func TestParseRespectsCap(t *testing.T) {
	for max := 0; max <= 7; max++ {
		posts, stats, err := Parse(activityHTML, parseOptions(max))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(posts), max)
		assert.LessOrEqual(t, stats.Processed, max)
		for _, p := range posts {
			assert.NotEmpty(t, p.Content)
			assert.NotEmpty(t, p.CanonicalURL)
		}
	}

	posts, _, err := Parse(activityHTML, parseOptions(2))
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0].CanonicalURL, "7001")
	assert.Contains(t, posts[1].CanonicalURL, "7002")
}

func TestParseFallsBackThroughContainerSelectors(t *testing.T) {
	html := `<html><body>
<article><p class="break-words">Only plain article markup rendered here.</p>
<a href="/feed/update/urn:li:activity:9/">x</a></article>
</body></html>`

	posts, stats, err := Parse(html, parseOptions(5))
	require.NoError(t, err)
	assert.Equal(t, "article", stats.ContainerSelector)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://x.test/feed/update/urn:li:activity:9/", posts[0].CanonicalURL)
}

func TestParseNoContainers(t *testing.T) {
	posts, stats, err := Parse("<html><body><p>nothing here</p></body></html>", parseOptions(5))
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, stats.ContainerSelector)
}

func TestParseTruncatesContent(t *testing.T) {
	opts := parseOptions(5)
	opts.MaxContentLength = 20
	posts, _, err := Parse(activityHTML, opts)
	require.NoError(t, err)
	for _, p := range posts {
		assert.LessOrEqual(t, len([]rune(p.Content)), 20)
	}
}

func TestEngagementKeywordAssignment(t *testing.T) {
	html := `<div class="feed-shared-update-v2">
<div class="update-components-text">Engagement attribution check post.</div>
<a href="/feed/update/urn:li:activity:1/">x</a>
<span class="social-details-social-counts__comments">12 comments</span>
<button aria-label="3 comments">3</button>
<span class="social-details-social-counts__item">9 reposts</span>
</div>`

	posts, _, err := Parse(html, parseOptions(1))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 12, posts[0].CommentCount)
	assert.Equal(t, 9, posts[0].LikeCount)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"12,345 reactions", 12345, true},
		{"1.2K reactions", 1200, true},
		{"1.2k", 1200, true},
		{"3K comments", 3000, true},
		{"2.5M likes", 2500000, true},
		{"12 K", 12000, true},
		{"4 kudos", 4, true},
		{"7 members", 7, true},
		{"Like", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, ok := parseCount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func newExtractor(f *browser.Fake) *Extractor {
	cfg := config.DefaultConfig()
	cfg.Extract.ScrollDelay = 0
	cfg.Navigation.BaseBackoff = time.Millisecond
	tl := logger.NewTestLogger()
	e := NewExtractor(cfg.Extract, "https://x.test", selectors.Default().Extract, navigation.NewRetrier(cfg.Navigation, tl), tl)
	e.now = func() time.Time { return crawlTime }
	return e
}

func TestExtractorProfile(t *testing.T) {
	f := browser.NewFake(map[string]browser.FakePage{
		"https://x.test/in/jdoe/recent-activity/all/": {Status: 200, HTML: activityHTML},
	})

	posts, err := newExtractor(f).Extract(context.Background(), f, "https://x.test/in/jdoe", 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, []string{"https://x.test/in/jdoe/recent-activity/all/"}, f.Navigations())
	assert.Equal(t, 6, f.Scrolls())
	assert.False(t, f.Closed())
}

func TestExtractorOrganizationScrollsMore(t *testing.T) {
	f := browser.NewFake(map[string]browser.FakePage{
		"https://x.test/company/acme/posts/": {Status: 200, HTML: activityHTML},
	})

	posts, err := newExtractor(f).Extract(context.Background(), f, "https://x.test/company/acme", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Equal(t, 10, f.Scrolls())
}

func TestExtractorNavigationFailure(t *testing.T) {
	f := browser.NewFake(nil)
	f.Failures["https://x.test/in/jdoe/recent-activity/all/"] = -1

	posts, err := newExtractor(f).Extract(context.Background(), f, "https://x.test/in/jdoe", 5)
	require.Error(t, err)
	assert.Nil(t, posts)
	assert.Len(t, f.Navigations(), 3)
	assert.Zero(t, f.Scrolls())
}
