package views

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction_monitor/models"
)

type fakeSource struct {
	stats     []models.SiteStats
	runs      []models.ScrapeRun
	logs      []models.ScrapeLog
	lastLevel *models.LogLevel
}

func (f *fakeSource) ListSiteStats() ([]models.SiteStats, error) { return f.stats, nil }

func (f *fakeSource) RecentRuns(limit int) ([]models.ScrapeRun, error) { return f.runs, nil }

func (f *fakeSource) RecentLogs(limit int, level *models.LogLevel) ([]models.ScrapeLog, error) {
	f.lastLevel = level
	return f.logs, nil
}

func TestDashboard_RendersSitesAndRuns(t *testing.T) {
	last := time.Now().Add(-2 * time.Hour)
	src := &fakeSource{
		stats: []models.SiteStats{{SiteID: "megaleiloes", LastRunAt: &last, LastRunStatus: "completed", TotalRuns: 12, TotalSnapshots: 3400, SuccessRate: 0.75}},
		runs:  []models.ScrapeRun{{SiteID: "megaleiloes", StartedAt: last, Status: models.RunStatusFailed, ItemsScraped: 321, ErrorsCount: 4}},
	}
	d := NewDashboard(src, filepath.Join(t.TempDir(), "missing.log")).SetSize(160, 50)

	msg := d.Refresh()()
	next, _ := d.Update(msg)
	d = next.(Dashboard)

	view := d.View()
	assert.Contains(t, view, "megaleiloes")
	assert.Contains(t, view, "completed")
	assert.Contains(t, view, "2h ago")
	assert.Contains(t, view, "Snapshots: 3400")
	assert.Contains(t, view, "Rate: 75%")
	assert.Contains(t, view, "321")
	assert.Contains(t, view, "failed")
}

func TestDashboard_LogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "2024/05/20 12:00:00 monitor.go:1: [INFO] line")
	}
	lines = append(lines, "2024/05/20 12:00:01 persist.go:1: [ERROR] chunk failed")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	d := NewDashboard(&fakeSource{}, path).SetSize(160, 50)
	next, _ := d.Update(d.RefreshLog()())
	d = next.(Dashboard)

	assert.Len(t, d.logLines, 31)
	view := d.View()
	assert.Contains(t, view, "chunk failed")
	assert.Contains(t, view, "LIVE")

	next, _ = d.Update(tea.KeyMsg{Type: tea.KeyUp})
	d = next.(Dashboard)
	assert.Equal(t, 1, d.logScroll)

	next, _ = d.Update(tea.KeyMsg{Type: tea.KeyEnd})
	d = next.(Dashboard)
	assert.Equal(t, 0, d.logScroll)
}

func TestReadLastLines_MissingFile(t *testing.T) {
	lines, mod := readLastLines(filepath.Join(t.TempDir(), "nope.log"), 10)
	assert.Equal(t, []string{"(no log file)"}, lines)
	assert.True(t, mod.IsZero())
}

func TestLogs_LevelFilter(t *testing.T) {
	runID := int64(7)
	src := &fakeSource{logs: []models.ScrapeLog{
		{RunID: &runID, Timestamp: time.Now(), Level: models.LogLevelError, Message: "update item failed", SiteID: "megaleiloes"},
	}}
	l := NewLogs(src).SetSize(160, 40)

	next, cmd := l.Update(tea.KeyMsg{Type: tea.KeyRight})
	l = next.(Logs)
	require.NotNil(t, cmd)
	next, _ = l.Update(cmd())
	l = next.(Logs)

	require.NotNil(t, src.lastLevel)
	assert.Equal(t, models.LogLevelDebug, *src.lastLevel)

	view := l.View()
	assert.Contains(t, view, "update item failed")
	assert.Contains(t, view, "#7")
	assert.Contains(t, view, "ERROR")

	next, cmd = l.Update(tea.KeyMsg{Type: tea.KeyLeft})
	l = next.(Logs)
	cmd()
	assert.Nil(t, src.lastLevel)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "São…", truncate("São Paulo", 4))
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "just now", relativeTime(time.Now()))
	assert.Equal(t, "5m ago", relativeTime(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3d ago", relativeTime(time.Now().Add(-73*time.Hour)))
}
