package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/config"
	"postcrawler/pkg/models"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "SQLite", DSN: filepath.Join(t.TempDir(), "s.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "airtable"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Driver: "csv"}, nil)
	assert.Error(t, err)
}

func TestMemorySources(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		models.Source{ID: "b", DisplayName: "B", Priority: 2, Status: models.SourceActive},
		models.Source{ID: "off", DisplayName: "Off", Priority: 0, Status: models.SourceInactive},
		models.Source{ID: "a", DisplayName: "A", Priority: 1, Status: "active"},
	)
	added, err := m.AddSource(ctx, models.Source{DisplayName: "C", Priority: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, models.SourceActive, added.Status)

	sources, err := m.ActiveSources(ctx)
	require.NoError(t, err)
	var names []string
	for _, s := range sources {
		names = append(names, s.DisplayName)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)

	m.SourcesErr = errors.New("down")
	_, err = m.ActiveSources(ctx)
	assert.Error(t, err)
}

func TestMemoryPosts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	post := models.NewStoredPost(models.ExtractedPost{Content: "hello", CanonicalURL: "https://x.test/p/1"}, models.SourceContext{}, time.Now())

	exists, err := m.ExistsByURL(ctx, post.CanonicalURL)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, m.Create(ctx, post))

	exists, err = m.ExistsByURL(ctx, post.CanonicalURL)
	require.NoError(t, err)
	assert.True(t, exists)

	m.CreateErr["https://x.test/p/2"] = errors.New("quota")
	post.CanonicalURL = "https://x.test/p/2"
	assert.Error(t, m.Create(ctx, post))

	assert.Len(t, m.Posts(), 1)
	existsCalls, creates := m.Calls()
	assert.Equal(t, 2, existsCalls)
	assert.Equal(t, 2, creates)
}

func TestMemoryRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, m.AppendRun(ctx, &models.RunSummary{RunID: id}))
	}

	runs, err := m.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].RunID)
	assert.Equal(t, "r2", runs[1].RunID)
}
