package tui

import "github.com/charmbracelet/lipgloss"

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E94560")).
			Background(lipgloss.Color("#0F0F23"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#585B70"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E94560")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#74C7EC")).
			Bold(true)

	labelFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E94560")).
				Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BAC2DE")).
			Background(lipgloss.Color("#181825"))

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E94560")).
			Background(lipgloss.Color("#181825")).
			Bold(true)

	logBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45475A"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#313244"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#313244")).
			Padding(0, 1)

	buttonFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(lipgloss.Color("#74C7EC")).
				Bold(true).
				Padding(0, 1)

	startButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(lipgloss.Color("#A6E3A1")).
				Bold(true).
				Padding(0, 1)

	stopButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#F38BA8")).
			Bold(true).
			Padding(0, 1)

	modalBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#E94560")).
				Padding(1, 2).
				Background(lipgloss.Color("#16213E"))

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E94560")).
			Background(lipgloss.Color("#16213E"))

	modalKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E94560"))

	modalDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))
)
