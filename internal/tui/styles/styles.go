// Package styles holds the shared lipgloss styles for specflow's terminal
// output: the dashboard and the status rendering of the CLI commands.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/specflow/specflow/internal/workflow"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	// Phase status colors
	StatusNotStarted    = lipgloss.Color("#9CA3AF") // Gray
	StatusAIWorking     = lipgloss.Color("#10B981") // Green
	StatusAwaitingUser  = lipgloss.Color("#F59E0B") // Amber
	StatusUserReviewing = lipgloss.Color("#60A5FA") // Blue
	StatusComplete      = lipgloss.Color("#A78BFA") // Purple

	// Convenience styles
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	AgentHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	AgentHeaderActive = lipgloss.NewStyle().
				Bold(true).
				Foreground(TextColor).
				Background(PrimaryColor).
				Padding(0, 1)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(1, 2)

	HistoryLine = lipgloss.NewStyle().
			Foreground(MutedColor)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)
)

// statusGlyphs maps each phase status to its display glyph.
var statusGlyphs = map[workflow.PhaseStatus]string{
	workflow.PhaseNotStarted:    "○",
	workflow.PhaseAIWorking:     "●",
	workflow.PhaseAwaitingUser:  "◐",
	workflow.PhaseUserReviewing: "◑",
	workflow.PhaseComplete:      "✓",
}

// statusColors maps each phase status to its color.
var statusColors = map[workflow.PhaseStatus]lipgloss.Color{
	workflow.PhaseNotStarted:    StatusNotStarted,
	workflow.PhaseAIWorking:     StatusAIWorking,
	workflow.PhaseAwaitingUser:  StatusAwaitingUser,
	workflow.PhaseUserReviewing: StatusUserReviewing,
	workflow.PhaseComplete:      StatusComplete,
}

// StatusGlyph returns the display glyph for a phase status.
func StatusGlyph(s workflow.PhaseStatus) string {
	if g, ok := statusGlyphs[s]; ok {
		return g
	}
	return "?"
}

// StatusStyle returns a style colored for a phase status.
func StatusStyle(s workflow.PhaseStatus) lipgloss.Style {
	if c, ok := statusColors[s]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return Muted
}

// RenderStatus renders a phase status as a colored glyph plus label.
func RenderStatus(s workflow.PhaseStatus) string {
	return StatusStyle(s).Render(StatusGlyph(s) + " " + string(s))
}
