// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the visible screen.
func (m *Model) View() string {
	header := components.RenderHeader(m.theme, m.width, m.user)

	if m.screen == ScreenLogin {
		bodyHeight := m.height - lipgloss.Height(header)
		if bodyHeight < 1 {
			bodyHeight = 1
		}
		body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.form.View())
		return lipgloss.JoinVertical(lipgloss.Left, header, body)
	}

	view := m.ctrl.Snapshot()
	status := m.statusBar.View(components.StatusInfo{
		Session: view,
		User:    m.userName(),
		Backend: m.backend,
		Message: m.message,
	})
	footer := m.theme.Hint.Render(m.help.View(m.keys))

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(status) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	switch {
	case view.WarningVisible:
		body = m.warning.Render(view, m.width, bodyHeight)
	case m.showHelp:
		body = m.helpPanel.View(m.width - 4)
	default:
		body = m.renderSession(view)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, footer)
}

func (m *Model) userName() string {
	if m.user == nil {
		return ""
	}
	return m.user.Username
}

func (m *Model) renderSession(view session.View) string {
	row := func(label, value string) string {
		return m.theme.Label.Render(label) + m.theme.Value.Render(value)
	}

	rows := []string{m.theme.PanelTitle.Render("Session")}
	if m.user != nil {
		rows = append(rows,
			row("Signed in as", m.user.DisplayName+" ("+m.user.Username+")"),
			row("Department", m.user.Department),
			row("Role", strings.ToLower(m.user.Role)),
		)
	}
	if m.gateway != nil {
		if sid := m.gateway.State().SessionID; sid != "" {
			rows = append(rows, row("Session ID", sid))
		}
	}

	rows = append(rows,
		row("Timeout", strconv.Itoa(view.TimeoutMinutes)+" min of inactivity"),
		row("Remaining", session.FormatDuration(time.Duration(view.RemainingSeconds)*time.Second)),
	)
	if !view.LastActivity.IsZero() {
		rows = append(rows, row("Last activity", view.LastActivity.Format("15:04:05")))
	}

	if m.server != nil {
		server := "no live session"
		if m.server.Active {
			server = "active, expires in " +
				session.FormatDuration(time.Duration(m.server.ExpiresInSeconds)*time.Second)
		}
		rows = append(rows, row("Server", server))
	}

	width := m.width - 2
	if width > 72 {
		width = 72
	}
	return m.theme.Panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
