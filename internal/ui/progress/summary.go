package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	rundto "coursedl/internal/modules/run/dto"
	"coursedl/internal/ui/theme"
)

// RenderSummary draws the end-of-run table followed by each failed task.
func RenderSummary(summary rundto.SummaryOutput) string {
	rows := make([][]string, 0, len(summary.Courses))
	for _, c := range summary.Courses {
		rows = append(rows, []string{
			c.CourseID,
			theme.Status(outcome(c)),
			strconv.Itoa(c.Planned),
			strconv.Itoa(c.Done),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Failed),
			humanize.Bytes(uint64(c.Bytes)),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Surface1)).
		Headers("course", "result", "planned", "done", "skipped", "failed", "size").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header
			}
			return theme.Cell
		})

	var b strings.Builder
	b.WriteString(theme.Title.Render("run "+summary.RunID) + theme.Muted.Render("  "+summary.Duration.Round(time.Millisecond).String()) + "\n")
	b.WriteString(t.Render() + "\n")
	for _, c := range summary.Courses {
		if c.Error != "" {
			b.WriteString(theme.Bad.Render(c.CourseID) + " " + c.Error + "\n")
		}
		for _, task := range c.FailedTasks {
			b.WriteString(fmt.Sprintf("%s %s %s\n", theme.Bad.Render("failed"), task.DestPath, theme.Muted.Render(task.Error)))
		}
	}
	return b.String()
}

func outcome(c rundto.CourseOutput) string {
	switch {
	case c.Error != "" || c.Err != nil:
		return "error"
	case c.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}
