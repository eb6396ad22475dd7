package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/diagnostics"
)

var (
	colorOK      = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	hintStyle  = lipgloss.NewStyle().Foreground(colorWarning).PaddingLeft(4)
	nameStyle  = lipgloss.NewStyle().Width(18)
)

func badge(s diagnostics.Status) string {
	switch s {
	case diagnostics.StatusPass:
		return okStyle.Render("PASS")
	case diagnostics.StatusFail:
		return failStyle.Render("FAIL")
	case diagnostics.StatusUndetermined:
		return warnStyle.Render("????")
	default:
		return mutedStyle.Render("SKIP")
	}
}
