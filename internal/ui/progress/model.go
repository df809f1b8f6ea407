package progress

import (
	"fmt"
	"strings"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"coursedl/internal/ui/theme"
)

const recentLines = 6

// ─── messages ────────────────────────────────────────────────────────────────

type CourseStartedMsg struct {
	CourseID string
	Tasks    int
}

type TaskFinishedMsg struct {
	CourseID string
	Name     string
	Status   string
	Bytes    int64
	Err      string
}

type CourseFinishedMsg struct {
	CourseID string
	Outcome  string
	Done     int
	Skipped  int
	Failed   int
	Bytes    int64
	Err      string
}

// DoneMsg ends the program once the run has returned.
type DoneMsg struct{}

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	spinner     spinner.Model
	bar         bar.Model
	onInterrupt func()
	interrupted bool

	course   string
	total    int
	finished int
	done     int
	skipped  int
	failed   int
	bytes    int64
	recent   []string
	courses  []string
	width    int
}

func New(onInterrupt func()) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	pb := bar.New(bar.WithGradient(string(theme.Sapphire), string(theme.Green)), bar.WithoutPercentage())
	pb.Width = 40

	return Model{spinner: sp, bar: pb, onInterrupt: onInterrupt}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), 60)

	case tea.KeyMsg:
		if msg.String() != "ctrl+c" && msg.String() != "q" {
			return m, nil
		}
		if m.interrupted {
			return m, tea.Quit
		}
		m.interrupted = true
		if m.onInterrupt != nil {
			m.onInterrupt()
		}

	case CourseStartedMsg:
		m.course = msg.CourseID
		m.total = msg.Tasks
		m.finished, m.done, m.skipped, m.failed, m.bytes = 0, 0, 0, 0, 0
		m.recent = nil

	case TaskFinishedMsg:
		m.finished++
		switch msg.Status {
		case "done":
			m.done++
			m.bytes += msg.Bytes
		case "skipped":
			m.skipped++
		case "failed":
			m.failed++
		}
		line := theme.Status(msg.Status) + " " + msg.Name
		if msg.Err != "" {
			line += theme.Muted.Render(": " + msg.Err)
		}
		m.recent = append(m.recent, line)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}

	case CourseFinishedMsg:
		line := fmt.Sprintf("%s %s  %d done  %d skipped  %d failed  %s",
			theme.Status(msg.Outcome), msg.CourseID, msg.Done, msg.Skipped, msg.Failed, humanize.Bytes(uint64(msg.Bytes)))
		if msg.Err != "" {
			line += theme.Muted.Render("  " + msg.Err)
		}
		m.courses = append(m.courses, line)
		m.course = ""

	case DoneMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent is the share of the current course's tasks that have finished.
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.finished) / float64(m.total)
}

func (m Model) View() string {
	var b strings.Builder
	for _, line := range m.courses {
		b.WriteString(line + "\n")
	}
	if m.course != "" {
		b.WriteString(fmt.Sprintf("%s %s  %s\n",
			m.spinner.View(),
			theme.Title.Render(m.course),
			theme.Muted.Render(fmt.Sprintf("%d/%d", m.finished, m.total))))
		b.WriteString(m.bar.ViewAs(m.Percent()) + "\n")
		b.WriteString(theme.Muted.Render(fmt.Sprintf("%d done  %d skipped  %d failed  %s",
			m.done, m.skipped, m.failed, humanize.Bytes(uint64(m.bytes)))) + "\n")
		for _, line := range m.recent {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.interrupted {
		b.WriteString(theme.Hot.Render("interrupted, finishing in-flight downloads") + "\n")
	}
	return b.String()
}
