package models

import (
	"strings"
	"time"
)

// SourceStatus marks whether a source is crawled
type SourceStatus string

const (
	SourceActive   SourceStatus = "Active"
	SourceInactive SourceStatus = "Inactive"
)

// PostStatusNew is the status every newly persisted post carries
const PostStatusNew = "New"

// Source is a profile or organization page configured to be crawled
type Source struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	TargetURL   string       `json:"target_url"`
	Group       string       `json:"group"`
	Priority    int          `json:"priority"`
	Status      SourceStatus `json:"status"`
}

// IsActive reports whether the source should be crawled
func (s Source) IsActive() bool {
	return strings.EqualFold(string(s.Status), string(SourceActive))
}

// Context returns the author metadata merged into stored posts
func (s Source) Context() SourceContext {
	return SourceContext{
		AuthorName:      s.DisplayName,
		AuthorSourceURL: s.TargetURL,
		Group:           s.Group,
	}
}

// SourceContext is the source metadata merged into every stored post
type SourceContext struct {
	AuthorName      string `json:"author_name"`
	AuthorSourceURL string `json:"author_source_url"`
	Group           string `json:"group"`
}

// ExtractedPost is one post pulled from a rendered activity page
type ExtractedPost struct {
	Content      string    `json:"content"`
	PublishedAt  time.Time `json:"published_at"`
	CanonicalURL string    `json:"canonical_url"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	HasMedia     bool      `json:"has_media"`
	MediaURL     string    `json:"media_url,omitempty"`

	// set when PublishedAt fell back to crawl time
	TimestampApproximate bool `json:"timestamp_approximate,omitempty"`
}

// StoredPost is an ExtractedPost merged with its source context
type StoredPost struct {
	ID string `json:"id"`
	ExtractedPost
	SourceContext
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStoredPost merges a post with its source context and marks it New
func NewStoredPost(post ExtractedPost, src SourceContext, now time.Time) StoredPost {
	return StoredPost{
		ExtractedPost: post,
		SourceContext: src,
		Status:        PostStatusNew,
		CreatedAt:     now,
	}
}

// SourceResult is the per-source detail of a run
type SourceResult struct {
	SourceID  string        `json:"source_id,omitempty"`
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Success   bool          `json:"success"`
	Extracted int           `json:"extracted"`
	Saved     int           `json:"saved"`
	SavedURLs []string      `json:"saved_urls,omitempty"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunSummary is produced once per run
type RunSummary struct {
	RunID            string         `json:"run_id"`
	Trigger          string         `json:"trigger"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	AuthState        string         `json:"auth_state"`
	SourcesTotal     int            `json:"sources_total"`
	SourcesSucceeded int            `json:"sources_succeeded"`
	SourcesFailed    int            `json:"sources_failed"`
	PostsNewTotal    int            `json:"posts_new_total"`
	PerSource        []SourceResult `json:"per_source"`
	Error            string         `json:"error,omitempty"`
}

// Add folds one source result into the totals
func (r *RunSummary) Add(res SourceResult) {
	r.PerSource = append(r.PerSource, res)
	if res.Success {
		r.SourcesSucceeded++
	} else {
		r.SourcesFailed++
	}
	r.PostsNewTotal += res.Saved
}

// Duration returns the wall time of the run
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
