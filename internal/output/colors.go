// Package output holds the terminal helpers shared by every orderstorm
// command: color schemes, TTY detection and request/response formatting.
package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Method      *color.Color
	Path        *color.Color
	StatusOK    *color.Color
	StatusWarn  *color.Color
	StatusError *color.Color
	JsonBody    *color.Color
	Success     *color.Color
	Warn        *color.Color
	Error       *color.Color
	Info        *color.Color
	Highlight   *color.Color
	Title       *color.Color
	Dim         *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	scheme := &ColorScheme{
		Method:      color.New(color.FgBlue, color.Bold),
		Path:        color.New(color.FgCyan),
		StatusOK:    color.New(color.FgGreen, color.Bold),
		StatusWarn:  color.New(color.FgYellow, color.Bold),
		StatusError: color.New(color.FgRed, color.Bold),
		JsonBody:    color.New(color.FgWhite),
		Success:     color.New(color.FgGreen),
		Warn:        color.New(color.FgYellow),
		Error:       color.New(color.FgRed),
		Info:        color.New(color.FgBlue),
		Highlight:   color.New(color.FgMagenta, color.Bold),
		Title:       color.New(color.Bold),
		Dim:         color.New(color.Faint),
	}
	// The scheme decides, not the global color.NoColor detection.
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// SchemeFor returns DefaultColorScheme when enabled, NoColorScheme otherwise.
func SchemeFor(enabled bool) *ColorScheme {
	if enabled {
		return DefaultColorScheme()
	}
	return NoColorScheme()
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Method, s.Path, s.StatusOK, s.StatusWarn, s.StatusError, s.JsonBody,
		s.Success, s.Warn, s.Error, s.Info, s.Highlight, s.Title, s.Dim,
	}
}

// Status picks the color for an HTTP status code.
func (s *ColorScheme) Status(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return s.StatusOK
	case code >= 300 && code < 500:
		return s.StatusWarn
	default:
		return s.StatusError
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return enabled(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return enabled(color.FgRed).Sprint("✗")
}

// InfoIcon returns an info symbol with appropriate color
func InfoIcon(noColor bool) string {
	if noColor {
		return "ℹ"
	}
	return enabled(color.FgBlue).Sprint("ℹ")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return enabled(color.FgYellow).Sprint("⚠")
}

func enabled(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}
