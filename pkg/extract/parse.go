package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"postcrawler/pkg/models"
	"postcrawler/pkg/selectors"
)

var (
	numberPattern     = regexp.MustCompile(`(\d[\d,]*)(?:\.(\d+))?\s*([KkMm])?\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Options control a single parse of an activity page
type Options struct {
	Max              int
	MinContentLength int
	MaxContentLength int
	// BaseURL resolves relative permalinks and synthesizes URLs from render IDs
	BaseURL   string
	Now       time.Time
	Selectors selectors.Extract
}

// Stats describes what a parse saw
type Stats struct {
	ContainerSelector string
	Containers        int
	Processed         int
	// Gaps counts containers skipped for lacking content or a canonical URL
	Gaps       int
	Duplicates int
}

// Parse pulls posts out of a rendered activity page, in document order and never more than opts.Max
func Parse(html string, opts Options) ([]models.ExtractedPost, Stats, error) {
	var stats Stats
	if opts.Max <= 0 {
		return nil, stats, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse activity page: %w", err)
	}

	var base *url.URL
	if opts.BaseURL != "" {
		if base, err = url.Parse(opts.BaseURL); err != nil {
			return nil, stats, fmt.Errorf("invalid base URL: %w", err)
		}
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	containers := doc.Selection
	for _, sel := range opts.Selectors.Containers {
		if found := doc.Find(sel); found.Length() > 0 {
			containers = found
			stats.ContainerSelector = sel
			break
		}
	}
	if stats.ContainerSelector == "" {
		return nil, stats, nil
	}
	stats.Containers = containers.Length()

	posts := make([]models.ExtractedPost, 0, opts.Max)
	seen := make(map[string]bool)

	containers.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if stats.Processed >= opts.Max {
			return false
		}
		stats.Processed++

		post, ok := parseItem(item, base, opts)
		if !ok {
			stats.Gaps++
			return true
		}
		if seen[post.CanonicalURL] {
			stats.Duplicates++
			return true
		}
		seen[post.CanonicalURL] = true
		posts = append(posts, post)
		return true
	})

	return posts, stats, nil
}

// parseItem extracts one post; false means a required field is missing
func parseItem(item *goquery.Selection, base *url.URL, opts Options) (models.ExtractedPost, bool) {
	sel := opts.Selectors

	content := extractContent(item, sel.Content, opts.MinContentLength, opts.MaxContentLength)
	if content == "" {
		return models.ExtractedPost{}, false
	}
	canonical := extractCanonicalURL(item, base, sel)
	if canonical == "" {
		return models.ExtractedPost{}, false
	}

	post := models.ExtractedPost{
		Content:      content,
		CanonicalURL: canonical,
	}

	if ts, ok := extractTimestamp(item, sel.Timestamp, sel.TimestampAttrs); ok {
		post.PublishedAt = ts
	} else {
		post.PublishedAt = opts.Now.UTC().Truncate(time.Second)
		post.TimestampApproximate = true
	}

	post.LikeCount, post.CommentCount = extractEngagement(item, sel.Engagement)
	post.HasMedia, post.MediaURL = extractMedia(item, sel.MediaImage, sel.MediaVideo)
	return post, true
}

func extractContent(item *goquery.Selection, candidates []string, minLen, maxLen int) string {
	for _, sel := range candidates {
		var found string
		item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeText(s.Text())
			if utf8.RuneCountInString(text) > minLen {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return truncate(found, maxLen)
		}
	}
	return ""
}

func normalizeText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

func extractTimestamp(item *goquery.Selection, candidates, attrs []string) (time.Time, bool) {
	for _, sel := range candidates {
		var ts time.Time
		item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range attrs {
				v, ok := s.Attr(attr)
				if !ok || strings.TrimSpace(v) == "" {
					continue
				}
				parsed, err := dateparse.ParseAny(strings.TrimSpace(v))
				if err != nil {
					continue
				}
				ts = parsed.UTC()
				return false
			}
			return true
		})
		if !ts.IsZero() {
			return ts, true
		}
	}
	return time.Time{}, false
}

// extractCanonicalURL tries the post permalink, then an activity link, then a render ID
func extractCanonicalURL(item *goquery.Selection, base *url.URL, sel selectors.Extract) string {
	for _, group := range [][]string{sel.Permalink, sel.ActivityLink} {
		for _, css := range group {
			var found string
			item.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if href, ok := s.Attr("href"); ok {
					found = canonicalize(base, href)
				}
				return found == ""
			})
			if found != "" {
				return found
			}
		}
	}

	for _, attr := range sel.RenderIDAttrs {
		if urn := renderID(item, attr); urn != "" && base != nil {
			return canonicalize(base, "/feed/update/"+urn+"/")
		}
	}
	return ""
}

func renderID(item *goquery.Selection, attr string) string {
	if v, ok := item.Attr(attr); ok && strings.Contains(v, "urn:li:") {
		return strings.TrimSpace(v)
	}
	var found string
	item.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr(attr); strings.Contains(v, "urn:li:") {
			found = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return found
}

// extractEngagement assigns each candidate by keyword: "comment" feeds the
// comment count, everything else the like count. The first number per field wins.
func extractEngagement(item *goquery.Selection, candidates []string) (likes, comments int) {
	likeSet, commentSet := false, false
	for _, sel := range candidates {
		item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label, _ := s.Attr("aria-label")
			if strings.TrimSpace(label) == "" {
				label = s.Text()
			}
			n, ok := parseCount(label)
			if !ok {
				return true
			}
			if strings.Contains(strings.ToLower(label), "comment") {
				if !commentSet {
					comments, commentSet = n, true
				}
			} else if !likeSet {
				likes, likeSet = n, true
			}
			return !(likeSet && commentSet)
		})
		if likeSet && commentSet {
			break
		}
	}
	return likes, comments
}

// parseCount reads the first number in s with thousands separators stripped.
// Abbreviated counts ("1.2K", "3M") are expanded, rounding down.
func parseCount(s string) (int, bool) {
	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	whole := strings.ReplaceAll(m[1], ",", "")

	var mult float64
	switch strings.ToUpper(m[3]) {
	case "K":
		mult = 1e3
	case "M":
		mult = 1e6
	default:
		n, err := strconv.Atoi(whole)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	num := whole
	if m[2] != "" {
		num += "." + m[2]
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f*mult + 1e-9), true
}

func extractMedia(item *goquery.Selection, images, videos []string) (bool, string) {
	for _, sel := range images {
		if img := item.Find(sel).First(); img.Length() > 0 {
			src, _ := img.Attr("src")
			return true, src
		}
	}
	for _, sel := range videos {
		if v := item.Find(sel).First(); v.Length() > 0 {
			src, _ := v.Attr("src")
			if src == "" {
				src, _ = v.Attr("poster")
			}
			return true, src
		}
	}
	return false, ""
}
