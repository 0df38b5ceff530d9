package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"postcrawler/pkg/models"
)

const maxCellWidth = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(grey).Padding(0, 1)
)

// table renders rows as padded columns under a bold header
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if style != nil {
				padded = render(*style, padded)
			}
			parts[i] = padded
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	lines := []string{line(header, &headerStyle)}
	for _, row := range rows {
		lines = append(lines, line(row, nil))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func status(ok bool) string {
	if ok {
		return render(SuccessStyle, "ok")
	}
	return render(ErrorStyle, "failed")
}

// RenderRunSummary renders one run with its per-source detail
func RenderRunSummary(run *models.RunSummary) string {
	if run == nil {
		return ""
	}

	head := []string{
		render(LabelStyle, "Run:") + " " + run.RunID,
		render(LabelStyle, "Trigger:") + " " + run.Trigger,
		render(LabelStyle, "Session:") + " " + run.AuthState,
		render(LabelStyle, "Sources:") + " " + fmt.Sprintf("%d total, %d ok, %d failed",
			run.SourcesTotal, run.SourcesSucceeded, run.SourcesFailed),
		render(LabelStyle, "New posts:") + " " + render(ValueStyle, strconv.Itoa(run.PostsNewTotal)),
	}
	if d := run.Duration(); d > 0 {
		head = append(head, render(LabelStyle, "Duration:")+" "+d.Round(time.Second).String())
	}
	if run.Error != "" {
		head = append(head, render(ErrorStyle, "Error: "+run.Error))
	}

	blocks := []string{strings.Join(head, "\n")}
	if len(run.PerSource) > 0 {
		rows := make([][]string, 0, len(run.PerSource))
		for _, src := range run.PerSource {
			rows = append(rows, []string{
				truncate(src.Name, 24),
				status(src.Success),
				strconv.Itoa(src.Extracted),
				strconv.Itoa(src.Saved),
				strconv.Itoa(src.Skipped),
				truncate(src.Error, maxCellWidth),
			})
		}
		blocks = append(blocks, table([]string{"SOURCE", "STATUS", "FOUND", "SAVED", "SEEN", "ERROR"}, rows))
	}

	body := strings.Join(blocks, "\n\n")
	if plain {
		return body
	}
	return boxStyle.Render(body)
}

// RenderRuns renders a run history list
func RenderRuns(runs []models.RunSummary) string {
	if len(runs) == 0 {
		return render(DimStyle, "No runs recorded yet")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Trigger,
			r.AuthState,
			fmt.Sprintf("%d/%d", r.SourcesSucceeded, r.SourcesTotal),
			strconv.Itoa(r.PostsNewTotal),
			truncate(r.Error, maxCellWidth),
		})
	}
	return table([]string{"STARTED", "TRIGGER", "SESSION", "SOURCES", "NEW", "ERROR"}, rows)
}

// RenderSources renders a source list
func RenderSources(sources []models.Source) string {
	if len(sources) == 0 {
		return render(DimStyle, "No active sources")
	}
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{
			strconv.Itoa(s.Priority),
			truncate(s.DisplayName, 24),
			s.Group,
			s.TargetURL,
		})
	}
	return table([]string{"PRI", "NAME", "GROUP", "URL"}, rows)
}
