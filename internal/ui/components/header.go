// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// HeaderTitle is the application title.
const HeaderTitle = "Research Portal"

// RenderHeader renders the top bar with the title and, when logged in, the
// user's name, department and role.
func RenderHeader(theme *styles.Theme, width int, user *portal.User) string {
	title := theme.HeaderTitle.Render(HeaderTitle)

	var who string
	if user != nil {
		name := user.DisplayName
		if name == "" {
			name = user.Username
		}
		parts := []string{name}
		if user.Department != "" {
			parts = append(parts, user.Department)
		}
		if user.Role != "" {
			parts = append(parts, strings.ToLower(user.Role))
		}
		who = strings.Join(parts, " | ")
	}

	inner := width - 2
	if inner < lipgloss.Width(title) {
		inner = lipgloss.Width(title)
	}
	room := inner - lipgloss.Width(title) - 2
	if room < 0 {
		room = 0
	}
	who = runewidth.Truncate(who, room, "…")

	gap := inner - lipgloss.Width(title) - runewidth.StringWidth(who)
	if gap < 1 {
		gap = 1
	}
	return theme.Header.Width(width).Render(title + strings.Repeat(" ", gap) + theme.HeaderUser.Render(who))
}
