// Package cli provides styled terminal output for the kvlabel commands.
package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	AccentColor = lipgloss.Color("#7AA2F7")
	PassColor   = lipgloss.Color("#4ECDC4")
	WarnColor   = lipgloss.Color("#FFE66D")
	FailColor   = lipgloss.Color("#FF6B6B")
	NoteColor   = lipgloss.Color("#95E1D3")
	MutedColor  = lipgloss.Color("#666666")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(AccentColor).MarginBottom(1)
	passStyle  = lipgloss.NewStyle().Foreground(PassColor)
	warnStyle  = lipgloss.NewStyle().Foreground(WarnColor)
	failStyle  = lipgloss.NewStyle().Foreground(FailColor)
	noteStyle  = lipgloss.NewStyle().Foreground(NoteColor)
	mutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
)

// Icons prefixed to status lines.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	KeyIcon     = "🔑"
)

// FormatSuccess renders a completed step, such as a written output file.
func FormatSuccess(message string) string {
	return passStyle.Render(SuccessIcon + " " + message)
}

// FormatError renders a failure line.
func FormatError(message string) string {
	return failStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning renders a problem the operator has to look at, such as a
// diagnostics file.
func FormatWarning(message string) string {
	return warnStyle.Render(WarningIcon + " " + message)
}

func FormatInfo(message string) string {
	return noteStyle.Render(InfoIcon + " " + message)
}

// FormatTitle renders a section heading above a summary table.
func FormatTitle(title string) string {
	return titleStyle.Render(KeyIcon + " " + title)
}

// FormatSubtle renders secondary text such as wrapped error causes.
func FormatSubtle(text string) string {
	return mutedStyle.Render(text)
}

// FormatScore renders a confidence score with two decimals, colored by
// whether it reaches threshold.
func FormatScore(score, threshold float64) string {
	s := strconv.FormatFloat(score, 'f', 2, 64)
	if score >= threshold {
		return passStyle.Render(s)
	}
	return warnStyle.Render(s)
}
