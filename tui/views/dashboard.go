package views

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"auction_monitor/models"
	"auction_monitor/tui/styles"
)

// A log file untouched for this long means the daemon is not running.
const staleLogAfter = 10 * time.Minute

type dashboardDataMsg struct {
	stats []models.SiteStats
	runs  []models.ScrapeRun
}

type logTailMsg struct {
	lines   []string
	modTime time.Time
}

type Dashboard struct {
	src           Source
	width, height int
	stats         []models.SiteStats
	runs          []models.ScrapeRun
	logLines      []string
	logPath       string
	logScroll     int // 0 = newest
	logViewport   int
	logBuffer     int
	logModTime    time.Time
}

func NewDashboard(src Source, logPath string) Dashboard {
	if logPath == "" {
		logPath = "monitor.log"
	}
	return Dashboard{
		src:         src,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		stats, _ := d.src.ListSiteStats()
		runs, _ := d.src.RecentRuns(10)
		return dashboardDataMsg{stats, runs}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime}
	}
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.stats = msg.stats
		d.runs = msg.runs
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Sites"),
		d.renderSiteCards(),
		"",
		styles.Title.Render("Recent Runs"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderLogTail() string {
	if len(d.logLines) == 0 {
		content := styles.Muted.Render("(waiting for logs...)")
		return styles.LogBox.Width(d.width - 4).Render(content)
	}

	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := max(endIdx-d.logViewport, 0)

	var lines []string
	for _, line := range d.logLines[startIdx:endIdx] {
		lines = append(lines, styleLogLine(line, d.width-8))
	}

	var scrollInfo string
	switch {
	case d.logModTime.IsZero() || time.Since(d.logModTime) > staleLogAfter:
		scrollInfo = styles.StatusError.Render(" ● IDLE ")
	case d.logScroll > 0:
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	default:
		scrollInfo = styles.StatusSuccess.Render(" ● LIVE ")
	}

	header := styles.Title.Render("Daemon Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))

	return styles.LogBox.Width(d.width - 4).Render(header + "\n" + strings.Join(lines, "\n"))
}

// styleLogLine colours a daemon log line by the level tag logging writes.
func styleLogLine(line string, maxWidth int) string {
	line = truncate(line, maxWidth)

	switch {
	case strings.Contains(line, "[ERROR]"):
		return styles.StatusError.Render(line)
	case strings.Contains(line, "[WARN]"):
		return styles.StatusPending.Render(line)
	case strings.Contains(line, "[INFO]"):
		return styles.LogInfo.Render(line)
	}
	return line
}

func (d Dashboard) renderSiteCards() string {
	if len(d.stats) == 0 {
		return styles.Muted.Render("No runs recorded yet")
	}

	var cards []string
	for _, s := range d.stats {
		cards = append(cards, renderSiteCard(s))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderSiteCard(s models.SiteStats) string {
	status, statusStyle := statusLabel(models.RunStatus(s.LastRunStatus))

	lastRun := "never"
	if s.LastRunAt != nil {
		lastRun = relativeTime(*s.LastRunAt)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(s.SiteID),
		statusStyle.Render(status),
		styles.StatLabel.Render(fmt.Sprintf("Last: %s", lastRun)),
		styles.StatLabel.Render(fmt.Sprintf("Runs: %d", s.TotalRuns)),
		styles.StatLabel.Render(fmt.Sprintf("Snapshots: %d", s.TotalSnapshots)),
		styles.StatLabel.Render(fmt.Sprintf("Rate: %.0f%%", s.SuccessRate*100)),
		styles.StatLabel.Render(fmt.Sprintf("Avg: %s", time.Duration(s.AvgRunDurationSec)*time.Second)),
	)
	return styles.SiteCardBorder.Width(26).Render(content)
}

func statusLabel(status models.RunStatus) (string, lipgloss.Style) {
	switch status {
	case models.RunStatusCompleted:
		return "✓ completed", styles.StatusSuccess
	case models.RunStatusFailed:
		return "✗ failed", styles.StatusError
	case models.RunStatusRunning:
		return "◐ running", styles.StatusPending
	}
	return "○ never run", styles.StatusPending
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-12s %-10s %-8s %7s %7s %5s %7s %6s",
		"Site", "Status", "Started", "Scraped", "Matched", "New", "Snaps", "Errors")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		_, statusStyle := statusLabel(r.Status)
		rows += fmt.Sprintf("%-12s %s %-8s %7d %7d %5d %7d %6d\n",
			truncate(r.SiteID, 12),
			statusStyle.Render(fmt.Sprintf("%-10s", r.Status)),
			r.StartedAt.Local().Format("15:04:05"),
			r.ItemsScraped,
			r.ItemsMatched,
			r.ItemsNew,
			r.SnapshotsCreated,
			r.ErrorsCount,
		)
	}
	return rows
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
