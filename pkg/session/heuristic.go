package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"postcrawler/pkg/selectors"
)

// Signals are the five structural markers of an authenticated page
type Signals struct {
	Navigation bool `json:"navigation"`
	Profile    bool `json:"profile"`
	Search     bool `json:"search"`
	Messaging  bool `json:"messaging"`
	Feed       bool `json:"feed"`
}

// Count returns the number of positive signals
func (s Signals) Count() int {
	n := 0
	for _, v := range []bool{s.Navigation, s.Profile, s.Search, s.Messaging, s.Feed} {
		if v {
			n++
		}
	}
	return n
}

// DetectSignals evaluates the markers against rendered HTML
func DetectSignals(html string, m selectors.Session) (Signals, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Signals{}, fmt.Errorf("failed to parse page: %w", err)
	}
	return detect(doc, m), nil
}

func detect(doc *goquery.Document, m selectors.Session) Signals {
	return Signals{
		Navigation: anyMatch(doc, m.Navigation),
		Profile:    anyMatch(doc, m.Profile),
		Search:     anyMatch(doc, m.Search),
		Messaging:  anyMatch(doc, m.Messaging),
		Feed:       anyMatch(doc, m.Feed),
	}
}

// IsAuthenticated passes with two or more signals, or exactly one signal
// when currentURL is an authenticated surface.
func IsAuthenticated(sig Signals, currentURL string, authenticatedPatterns []string) bool {
	switch n := sig.Count(); {
	case n >= 2:
		return true
	case n == 1:
		return MatchesAny(currentURL, authenticatedPatterns)
	default:
		return false
	}
}

// MatchesAny reports whether the path of rawURL contains one of patterns
func MatchesAny(rawURL string, patterns []string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, p := range patterns {
		if p != "" && strings.Contains(path, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func anyMatch(doc *goquery.Document, sels []string) bool {
	return firstMatch(doc, sels) != ""
}

// firstMatch returns the first selector with at least one match
func firstMatch(doc *goquery.Document, sels []string) string {
	for _, sel := range sels {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}
