package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/salvage/internal/config"
	"github.com/bamsammich/salvage/internal/transport"
)

// Palette used for status words. Mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorMuted  = lipgloss.Color("#5a6278")
)

var (
	styleOK    lipgloss.Style
	styleFail  lipgloss.Style
	styleWarn  lipgloss.Style
	styleMuted lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleOK = lipgloss.NewStyle().Foreground(ColorGreen)
	styleFail = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(ColorYellow)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	rebuildStyles()
}

// StatusText renders the user-facing description of a copy status in the
// status color.
func StatusText(s transport.CopyStatus) string {
	desc := s.Description()
	switch {
	case s == transport.StatusUnset:
		return ""
	case s.OK():
		return styleOK.Render(desc)
	case s == transport.NoSpace || s == transport.NoMemory:
		return styleWarn.Render(desc)
	default:
		return styleFail.Render(desc)
	}
}
