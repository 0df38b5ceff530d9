package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceIsActive(t *testing.T) {
	assert.True(t, Source{Status: SourceActive}.IsActive())
	assert.True(t, Source{Status: "active"}.IsActive())
	assert.False(t, Source{Status: SourceInactive}.IsActive())
	assert.False(t, Source{}.IsActive())
}

func TestNewStoredPost(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src := Source{DisplayName: "Jane", TargetURL: "https://x.test/in/jane", Group: "founders"}
	p := NewStoredPost(ExtractedPost{Content: "hi", CanonicalURL: "https://x.test/p/1"}, src.Context(), now)

	assert.Equal(t, PostStatusNew, p.Status)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, "Jane", p.AuthorName)
	assert.Equal(t, "https://x.test/in/jane", p.AuthorSourceURL)
	assert.Equal(t, "founders", p.Group)
	assert.Equal(t, "https://x.test/p/1", p.CanonicalURL)
}

func TestRunSummaryAdd(t *testing.T) {
	start := time.Now()
	r := &RunSummary{StartedAt: start}
	r.Add(SourceResult{Success: true, Saved: 3})
	r.Add(SourceResult{Success: false, Error: "navigation"})
	r.Add(SourceResult{Success: true, Saved: 0})

	assert.Equal(t, 2, r.SourcesSucceeded)
	assert.Equal(t, 1, r.SourcesFailed)
	assert.Equal(t, 3, r.PostsNewTotal)
	assert.Len(t, r.PerSource, 3)

	assert.Zero(t, r.Duration())
	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}
