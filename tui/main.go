package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"auction_monitor/models"
	"auction_monitor/storage"
	"auction_monitor/tui/styles"
	"auction_monitor/tui/views"
)

type tab int

const (
	tabDashboard tab = iota
	tabLogs
)

// CommandSink queues commands for the daemon.
type CommandSink interface {
	EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error)
}

type model struct {
	commands      CommandSink
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	dashboard views.Dashboard
	logs      views.Logs
}

type tickMsg time.Time
type logTickMsg time.Time

func initialModel(src views.Source, commands CommandSink, logPath string) model {
	return model{
		commands:  commands,
		activeTab: tabDashboard,
		dashboard: views.NewDashboard(src, logPath),
		logs:      views.NewLogs(src),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.logs.Init(),
		tickCmd(),
		logTickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.activeTab = tabDashboard
		case "L":
			m.activeTab = tabLogs
		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
		case "r":
			m = m.notify("Refreshed")
			return m, m.refreshActive()
		case "s":
			m = m.send(models.CmdScrapeNow, "Scrape command sent!")
		case "p":
			m = m.send(models.CmdPause, "Pause command sent")
		case "u":
			m = m.send(models.CmdResume, "Resume command sent")
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard = m.dashboard.SetSize(msg.Width, msg.Height-4)
		m.logs = m.logs.SetSize(msg.Width, msg.Height-4)

	case tickMsg:
		cmds = append(cmds, m.refreshActive(), tickCmd())

	case logTickMsg:
		cmds = append(cmds, m.dashboard.RefreshLog(), logTickCmd())
	}

	// Keys go to the active tab only, data messages go everywhere.
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.activeTab {
		case tabDashboard:
			next, cmd := m.dashboard.Update(msg)
			m.dashboard = next.(views.Dashboard)
			cmds = append(cmds, cmd)
		case tabLogs:
			next, cmd := m.logs.Update(msg)
			m.logs = next.(views.Logs)
			cmds = append(cmds, cmd)
		}
	default:
		nextDash, cmd1 := m.dashboard.Update(msg)
		m.dashboard = nextDash.(views.Dashboard)
		nextLogs, cmd2 := m.logs.Update(msg)
		m.logs = nextLogs.(views.Logs)
		cmds = append(cmds, cmd1, cmd2)
	}

	return m, tea.Batch(cmds...)
}

func (m model) send(cmd models.CommandType, ok string) model {
	if _, err := m.commands.EnqueueCommand(cmd, nil); err != nil {
		return m.notify("Command failed: " + err.Error())
	}
	return m.notify(ok)
}

func (m model) notify(text string) model {
	m.notification = text
	m.notifyUntil = time.Now().Add(2 * time.Second)
	return m
}

func (m model) refreshActive() tea.Cmd {
	switch m.activeTab {
	case tabDashboard:
		return m.dashboard.Refresh()
	case tabLogs:
		return m.logs.Refresh()
	}
	return nil
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m model) renderTabs() string {
	tabNames := []string{"Dashboard", "Logs"}
	var rendered []string
	for i, name := range tabNames {
		if tab(i) == m.activeTab {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	if m.activeTab == tabLogs {
		return m.logs.View()
	}
	return m.dashboard.View()
}

func (m model) renderStatusBar() string {
	left := "d Dash  L Logs  r Refresh  s Scrape  p Pause  u Resume  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.Notification.Render(m.notification)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

func main() {
	_ = godotenv.Load()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "monitor.db"
	}
	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = "monitor.log"
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	p := tea.NewProgram(initialModel(store, store, logPath), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
