// Package ui provides terminal styling for CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderAccent styles attention-drawing output.
func RenderAccent(s string) string {
	return accentStyle.Render(s)
}

// RenderSuccess styles success output.
func RenderSuccess(s string) string {
	return successStyle.Render(s)
}

// RenderError styles error output.
func RenderError(s string) string {
	return errorStyle.Render(s)
}

// RenderDim styles secondary detail.
func RenderDim(s string) string {
	return dimStyle.Render(s)
}
