package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Lllllllleong/caresync/internal/models"
)

// Theme represents a color scheme for the dashboard
type Theme struct {
	Name string

	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
}

// Indigo is the default theme, after the web dashboard's palette.
var Indigo = Theme{
	Name: "Indigo",

	Background:    lipgloss.Color("#1e1b4b"),
	Foreground:    lipgloss.Color("#e0e7ff"),
	ForegroundDim: lipgloss.Color("#818cf8"),

	Primary:   lipgloss.Color("#6366f1"),
	Secondary: lipgloss.Color("#a855f7"),
	Accent:    lipgloss.Color("#22d3ee"),

	Success: lipgloss.Color("#22c55e"),
	Warning: lipgloss.Color("#eab308"),
	Error:   lipgloss.Color("#ef4444"),
	Info:    lipgloss.Color("#3b82f6"),

	Border:      lipgloss.Color("#3730a3"),
	BorderFocus: lipgloss.Color("#818cf8"),
	Selection:   lipgloss.Color("#312e81"),
}

// Current holds the active theme
var Current = Indigo

// MaxWidth caps the dashboard width on very wide terminals.
const MaxWidth = 140

func ContentWidth(terminalWidth int) int {
	if terminalWidth > MaxWidth {
		return MaxWidth
	}
	return terminalWidth
}

// CenterView centers content horizontally if the terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// PriorityColor matches the dashboard's priority badges.
func PriorityColor(p models.Priority) lipgloss.Color {
	t := Current
	switch p {
	case models.PriorityUrgent:
		return t.Error
	case models.PriorityHigh:
		return lipgloss.Color("#f97316")
	case models.PriorityMedium:
		return t.Warning
	default:
		return t.Success
	}
}

// Styles holds the pre-computed styles for the UI
type Styles struct {
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	Column        lipgloss.Style
	ColumnFocused lipgloss.Style
	ColumnTitle   lipgloss.Style

	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	Badge lipgloss.Style

	Input        lipgloss.Style
	InputFocused lipgloss.Style

	Panel lipgloss.Style

	ChatUser      lipgloss.Style
	ChatAssistant lipgloss.Style
	ChatCutOff    lipgloss.Style

	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style

	StatusBar lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		TitleMuted: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		ColumnFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		ColumnTitle: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true).
			MarginBottom(1),

		ListItem: lipgloss.NewStyle().
			Foreground(t.Foreground),

		ListSelected: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Background(t.Selection).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Bold(true),

		Input: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		InputFocused: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		ChatUser: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		ChatAssistant: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),

		ChatCutOff: lipgloss.NewStyle().
			Foreground(t.Warning).
			Italic(true),

		Help: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(1, 1, 0, 1),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		HelpDesc: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		StatusBar: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Error: lipgloss.NewStyle().
			Foreground(t.Error).
			Padding(0, 1),
	}
}
