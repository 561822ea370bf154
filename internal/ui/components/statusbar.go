// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusInfo is what the status bar shows.
type StatusInfo struct {
	Session session.View
	User    string
	Backend string
	Message string
}

// StatusBar renders the bottom bar with the remaining session time.
type StatusBar struct {
	theme *styles.Theme
	bar   progress.Model
	width int
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme: theme,
		bar: progress.New(
			progress.WithSolidFill(string(styles.Emerald.Dark)),
			progress.WithoutPercentage(),
			progress.WithWidth(20),
		),
		width: 80,
	}
}

// SetWidth sets the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// Fraction returns the share of the timeout still remaining, in [0, 1].
func Fraction(v session.View) float64 {
	total := v.TimeoutMinutes * 60
	if total <= 0 || v.RemainingSeconds <= 0 {
		return 0
	}
	f := float64(v.RemainingSeconds) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// View renders the status bar.
func (s *StatusBar) View(info StatusInfo) string {
	v := info.Session

	var state string
	switch {
	case !v.Running:
		state = s.theme.StatusKey.Render("session inactive")
	case v.WarningVisible:
		state = s.theme.StatusWarning.Render(styles.StatusIndicators.Warning + " " + FormatRemaining(v.RemainingSeconds))
	case v.RemainingSeconds == 0:
		state = s.theme.StatusExpired.Render(styles.StatusIndicators.Error + " expired")
	default:
		state = s.theme.StatusOK.Render("session " + FormatRemaining(v.RemainingSeconds))
	}

	left := state
	if v.Running {
		left += " " + s.bar.ViewAs(Fraction(v))
	}
	if info.Message != "" {
		left += "  " + s.theme.StatusKey.Render(info.Message)
	}

	right := info.User
	if info.Backend != "" {
		if right != "" {
			right += " @ "
		}
		right += info.Backend
	}

	inner := s.width - 2
	if inner < 10 {
		inner = 10
	}
	room := inner - lipgloss.Width(left) - 1
	if room < 0 {
		room = 0
	}
	right = runewidth.Truncate(right, room, "…")

	gap := inner - lipgloss.Width(left) - runewidth.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Width(s.width).MaxWidth(s.width).
		Render(left + strings.Repeat(" ", gap) + s.theme.StatusKey.Render(right))
}
