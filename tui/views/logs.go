package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"auction_monitor/models"
	"auction_monitor/tui/styles"
)

var logLevels = []string{"ALL", "DEBUG", "INFO", "WARN", "ERROR"}

type logsMsg struct {
	logs []models.ScrapeLog
}

// Logs shows run-scoped log records from the operational store.
type Logs struct {
	src           Source
	width, height int
	logs          []models.ScrapeLog
	levelIndex    int
	scrollOffset  int
}

func NewLogs(src Source) Logs {
	return Logs{src: src}
}

func (l Logs) Init() tea.Cmd {
	return l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	level := l.level()
	return func() tea.Msg {
		logs, _ := l.src.RecentLogs(200, level)
		return logsMsg{logs}
	}
}

func (l Logs) level() *models.LogLevel {
	if l.levelIndex == 0 {
		return nil
	}
	lvl := models.LogLevel(strings.ToLower(logLevels[l.levelIndex]))
	return &lvl
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		l.logs = msg.logs
		l.scrollOffset = 0

	case tea.KeyMsg:
		maxScroll := max(len(l.logs)-l.visibleLines(), 0)
		switch msg.String() {
		case "left", "h":
			if l.levelIndex > 0 {
				l.levelIndex--
				return l, l.Refresh()
			}
		case "right", "l":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				return l, l.Refresh()
			}
		case "up", "k":
			if l.scrollOffset > 0 {
				l.scrollOffset--
			}
		case "down", "j":
			if l.scrollOffset < maxScroll {
				l.scrollOffset++
			}
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = maxScroll
		}
	}
	return l, nil
}

func (l Logs) visibleLines() int {
	if l.height-6 < 1 {
		return 10
	}
	return l.height - 6
}

func (l Logs) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Run Logs"),
		l.renderFilter(),
		"",
		l.renderLogs(),
	)
}

func (l Logs) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		if i == l.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (l Logs) renderLogs() string {
	if len(l.logs) == 0 {
		return styles.Muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), len(l.logs))

	var lines []string
	for _, entry := range l.logs[start:end] {
		lines = append(lines, l.formatLog(entry))
	}

	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.logs)))
	return header + "\n" + strings.Join(lines, "\n")
}

func (l Logs) formatLog(entry models.ScrapeLog) string {
	ts := entry.Timestamp.Local().Format("01-02 15:04:05")
	level := fmt.Sprintf("%-5s", strings.ToUpper(string(entry.Level)))

	var levelStyle lipgloss.Style
	switch entry.Level {
	case models.LogLevelDebug:
		levelStyle = styles.Muted
	case models.LogLevelInfo:
		levelStyle = styles.StatusSuccess
	case models.LogLevelWarn:
		levelStyle = styles.StatusPending
	case models.LogLevelError:
		levelStyle = styles.StatusError
	default:
		levelStyle = lipgloss.NewStyle()
	}

	run := "      "
	if entry.RunID != nil {
		run = fmt.Sprintf("#%-5d", *entry.RunID)
	}

	msg := entry.Message
	if l.width > 40 {
		msg = truncate(msg, l.width-40)
	}

	return fmt.Sprintf("%s %s %s %s %s",
		styles.Muted.Render(ts),
		levelStyle.Render(level),
		styles.Muted.Render(run),
		styles.Muted.Render("["+entry.SiteID+"]"),
		msg,
	)
}
