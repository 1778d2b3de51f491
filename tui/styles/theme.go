package styles

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor   = lipgloss.Color("#7C3AED")
	SecondaryColor = lipgloss.Color("#06B6D4")
	SuccessColor   = lipgloss.Color("#22C55E")
	WarningColor   = lipgloss.Color("#EAB308")
	ErrorColor     = lipgloss.Color("#EF4444")
	MutedColor     = lipgloss.Color("#6B7280")
	TextColor      = lipgloss.Color("#F9FAFB")

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	TabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 2)

	TabInactive = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 1)

	SiteCardBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(0, 1)

	LogBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Padding(0, 1)

	StatValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	StatLabel = lipgloss.NewStyle().
			Foreground(MutedColor)

	StatusSuccess = lipgloss.NewStyle().Foreground(SuccessColor)
	StatusError   = lipgloss.NewStyle().Foreground(ErrorColor)
	StatusPending = lipgloss.NewStyle().Foreground(WarningColor)

	LogTimestamp = lipgloss.NewStyle().Foreground(MutedColor)
	LogInfo      = lipgloss.NewStyle().Foreground(SecondaryColor)

	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	Notification = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Padding(0, 1)
)
