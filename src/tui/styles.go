package tui

import "github.com/charmbracelet/lipgloss"

// StyleConfig holds the customizable colors for the progress display.
type StyleConfig struct {
	Title     lipgloss.Color
	Success   lipgloss.Color
	Failure   lipgloss.Color
	Secondary lipgloss.Color
	Spinner   lipgloss.Color
}

// DefaultStyles returns the default palette.
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		Title:     lipgloss.Color("#8AB4F8"),
		Success:   lipgloss.Color("#34A853"),
		Failure:   lipgloss.Color("#EA4335"),
		Secondary: lipgloss.Color("#9AA0A6"),
		Spinner:   lipgloss.Color("#FBBC04"),
	}
}

// TitleStyle renders the run header.
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.Title).Bold(true)
}

// SuccessStyle renders completed task lines.
func (s *StyleConfig) SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.Success)
}

// FailureStyle renders failed task lines.
func (s *StyleConfig) FailureStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.Failure)
}

// SecondaryStyle renders help and detail text.
func (s *StyleConfig) SecondaryStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.Secondary)
}
