package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
)

func TestFileLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.json")

	log, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, log.Path())

	t.Run("EmptyHistory", func(t *testing.T) {
		runs, err := log.RecentRuns(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("AppendNewestFirst", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			require.NoError(t, log.AppendRun(ctx, &models.RunSummary{RunID: fmt.Sprintf("r%d", i), PostsNewTotal: i}))
		}
		runs, err := log.RecentRuns(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "r3", runs[0].RunID)
		assert.Equal(t, "r2", runs[1].RunID)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "temporary file must not linger")
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		reopened, err := New(path, nil)
		require.NoError(t, err)
		runs, err := reopened.RecentRuns(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, runs, 3)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, log.Clear())
		require.NoError(t, log.Clear())
		runs, err := log.RecentRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestFileLogRetention(t *testing.T) {
	ctx := context.Background()
	log, err := New(filepath.Join(t.TempDir(), "runs.json"), nil)
	require.NoError(t, err)
	log.SetMaxEntries(2)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.AppendRun(ctx, &models.RunSummary{RunID: fmt.Sprint(i)}))
	}
	runs, err := log.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "4", runs[0].RunID)
}

func TestFileLogCorruptFileIsMovedAside(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tl := logger.NewTestLogger()
	log, err := New(path, tl)
	require.NoError(t, err)

	require.NoError(t, log.AppendRun(ctx, &models.RunSummary{RunID: "fresh"}))
	runs, err := log.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fresh", runs[0].RunID)

	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)
	assert.True(t, tl.HasMessage("Run log unreadable, starting fresh"))
}

func TestDefaultPathUsesDataDirectory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME only applies on linux")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	log, err := New("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "postcrawler", "runs.json"), log.Path())
}
