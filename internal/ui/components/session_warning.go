// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// =============================================================================
// SESSION WARNING OVERLAY
// =============================================================================

// SessionWarning renders the inactivity warning from a session.View. It
// holds no session state of its own; every call takes the current view.
type SessionWarning struct {
	Extend key.Binding
}

// NewSessionWarning creates the presenter with the default extend binding.
func NewSessionWarning() SessionWarning {
	return SessionWarning{
		Extend: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e/enter", "extend session"),
		),
	}
}

// Update returns a command yielding session.ExtendMsg when the warning is
// visible and the extend key is pressed.
func (w SessionWarning) Update(msg tea.Msg, view session.View) tea.Cmd {
	if !view.WarningVisible {
		return nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, w.Extend) {
		return func() tea.Msg { return session.ExtendMsg{} }
	}
	return nil
}

// Render returns the centred warning box, or "" when the warning is hidden.
func (w SessionWarning) Render(view session.View, width, height int) string {
	if !view.WarningVisible {
		return ""
	}
	if width == 0 {
		width = 60
	}
	if height == 0 {
		height = 24
	}

	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)
	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true)

	help := w.Extend.Help()
	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(styles.StatusIndicators.Warning+" Session expiring"),
		"",
		msgStyle.Render("Your session will expire due to inactivity in "+
			timeStyle.Render(FormatRemaining(view.RemainingSeconds))),
		"",
		hintStyle.Render(fmt.Sprintf("Press %s to %s", help.Key, help.Desc)),
	)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// FormatRemaining formats seconds as M:SS. Negative input renders as 0:00.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
