package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"postcrawler/pkg/models"
)

func plainOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(nil)
		SetNoColor(false)
		SetQuietMode(false)
	})
	return &buf
}

func TestRenderRunSummary(t *testing.T) {
	plainOutput(t)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	run := &models.RunSummary{
		RunID:      "run-1",
		Trigger:    "manual",
		AuthState:  "authenticated",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Minute),
	}
	run.SourcesTotal = 2
	run.Add(models.SourceResult{Name: "jane", Success: true, Extracted: 4, Saved: 3, Skipped: 1})
	run.Add(models.SourceResult{Name: "acme", Error: "navigation failed"})

	out := RenderRunSummary(run)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2 total, 1 ok, 1 failed")
	assert.Contains(t, out, "New posts: 3")
	assert.Contains(t, out, "Duration: 2m0s")
	assert.Contains(t, out, "navigation failed")

	lines := strings.Split(out, "\n")
	var jane string
	for _, l := range lines {
		if strings.HasPrefix(l, "jane") {
			jane = l
		}
	}
	assert.Equal(t, []string{"jane", "ok", "4", "3", "1"}, strings.Fields(jane))
}

func TestRenderRunSummaryNil(t *testing.T) {
	assert.Empty(t, RenderRunSummary(nil))
}

func TestRenderRunsAndSources(t *testing.T) {
	plainOutput(t)
	assert.Equal(t, "No runs recorded yet", RenderRuns(nil))
	assert.Equal(t, "No active sources", RenderSources(nil))

	out := RenderSources([]models.Source{{DisplayName: "Jane", TargetURL: "https://x.test/in/jane", Priority: 1, Group: "founders"}})
	assert.Contains(t, out, "PRI")
	assert.Contains(t, out, "https://x.test/in/jane")

	runs := RenderRuns([]models.RunSummary{{Trigger: "schedule", SourcesTotal: 3, SourcesSucceeded: 2, PostsNewTotal: 7}})
	assert.Contains(t, runs, "2/3")
	assert.Contains(t, runs, "schedule")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := plainOutput(t)
	SetQuietMode(true)

	PrintInfo("Label", "value")
	PrintSuccess("done")
	PrintError("Failed", "boom")

	assert.Equal(t, "Failed: boom\n", buf.String())
}
