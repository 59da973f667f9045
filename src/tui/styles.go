package tui

import "github.com/charmbracelet/lipgloss"

// StyleConfig holds all customizable style colors for the dashboard.
type StyleConfig struct {
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SuccessGreen   lipgloss.Color
	ErrorRed       lipgloss.Color
	WarningYellow  lipgloss.Color
	CancelledGray  lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:   lipgloss.Color("#8AB4F8"),
		AccentBlue:    lipgloss.Color("#4285F4"),
		TextPrimary:   lipgloss.Color("#E8EAED"),
		TextSecondary: lipgloss.Color("#9AA0A6"),
		BorderColor:   lipgloss.Color("#5F6368"),
		SuccessGreen:  lipgloss.Color("#34A853"),
		ErrorRed:      lipgloss.Color("#EA4335"),
		WarningYellow: lipgloss.Color("#FBBC04"),
		CancelledGray: lipgloss.Color("#9AA0A6"),
	}
}

// TitleStyle returns the dashboard title style
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns the key-binding help text style
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 1)
}

// PanelStyle returns the bordered panel style used for status and logs
func (s *StyleConfig) PanelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.BorderColor)
}

// StallBannerStyle returns the style for the stall warning banner
func (s *StyleConfig) StallBannerStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.WarningYellow).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.ThickBorder()).
		BorderForeground(s.WarningYellow)
}

// NoticeStyle returns the style for operator notices and degraded warnings
func (s *StyleConfig) NoticeStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.WarningYellow).
		Padding(0, 1)
}

// StateStyle returns the style matching a lifecycle phase label.
func (s *StyleConfig) StateStyle(state string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch state {
	case "running", "starting":
		return style.Foreground(s.AccentBlue)
	case "success":
		return style.Foreground(s.SuccessGreen)
	case "error":
		return style.Foreground(s.ErrorRed)
	case "cancelled":
		return style.Foreground(s.CancelledGray)
	}
	return style.Foreground(s.TextPrimary)
}
