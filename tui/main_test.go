package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"auction_monitor/models"
)

type fakeSource struct{}

func (fakeSource) ListSiteStats() ([]models.SiteStats, error)       { return nil, nil }
func (fakeSource) RecentRuns(limit int) ([]models.ScrapeRun, error) { return nil, nil }
func (fakeSource) RecentLogs(int, *models.LogLevel) ([]models.ScrapeLog, error) {
	return nil, nil
}

type fakeSink struct {
	sent []models.CommandType
	err  error
}

func (f *fakeSink) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, cmd)
	return int64(len(f.sent)), nil
}

func press(m model, key string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(model)
}

func TestModel_SendsCommands(t *testing.T) {
	sink := &fakeSink{}
	m := initialModel(fakeSource{}, sink, "")

	m = press(m, "s")
	assert.Equal(t, "Scrape command sent!", m.notification)
	m = press(m, "p")
	m = press(m, "u")

	assert.Equal(t, []models.CommandType{models.CmdScrapeNow, models.CmdPause, models.CmdResume}, sink.sent)
}

func TestModel_CommandFailureIsShown(t *testing.T) {
	m := initialModel(fakeSource{}, &fakeSink{err: errors.New("database is locked")}, "")

	m = press(m, "s")
	assert.Equal(t, "Command failed: database is locked", m.notification)
}

func TestModel_Tabs(t *testing.T) {
	m := initialModel(fakeSource{}, &fakeSink{}, "")

	m = press(m, "L")
	assert.Equal(t, tabLogs, m.activeTab)
	assert.Contains(t, m.View(), "Run Logs")

	m = press(m, "d")
	assert.Equal(t, tabDashboard, m.activeTab)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, tabLogs, next.(model).activeTab)
}
