// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/logging"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/components"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// ExpiredNotice is shown on the login screen after an inactivity logout.
const ExpiredNotice = "Your session expired due to inactivity. Please sign in again."

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message. Every message is also offered to the session
// controller, which ignores what it does not know.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The warning reacts to the view the user was looking at, before this
	// input counts as activity.
	before := m.ctrl.Snapshot()
	if m.screen == ScreenPortal && m.activity != nil {
		if kind, ok := session.ActivityKindOf(msg); ok {
			m.activity.Emit(kind)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.ctrl.Stop()
			return m, tea.Quit
		}
		if m.screen == ScreenLogin {
			cmds = append(cmds, m.form.Update(msg))
		} else {
			cmds = append(cmds, m.handlePortalKey(msg, before))
		}

	case components.LoginSubmitMsg:
		cmds = append(cmds, m.login(msg))

	case loginResultMsg:
		if msg.err != nil {
			m.form.SetError(loginErrorText(msg.err))
		}

	case AuthChangedMsg:
		cmds = append(cmds, m.onAuthChanged(msg))

	case logoutResultMsg:
		if msg.err != nil {
			logrus.WithError(msg.err).Warn("sign out")
		}

	case session.ExpiredMsg:
		m.toLogin(ExpiredNotice)

	case statusResultMsg:
		if msg.err != nil {
			m.message = "status check failed"
			logrus.WithError(msg.err).Debug("status check")
		} else {
			m.server = msg.status
			m.message = ""
		}

	case ConfigReloadedMsg:
		m.onConfigReloaded(msg)

	default:
		if m.screen == ScreenLogin {
			cmds = append(cmds, m.form.Update(msg))
		}
	}

	cmds = append(cmds, m.ctrl.Update(msg))
	return m, tea.Batch(cmds...)
}

func (m *Model) handlePortalKey(msg tea.KeyMsg, view session.View) tea.Cmd {
	if cmd := m.warning.Update(msg, view); cmd != nil {
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.QuitShort):
		m.ctrl.Stop()
		return tea.Quit
	case key.Matches(msg, m.keys.Logout):
		return m.logout()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, m.keys.Refresh):
		return m.checkStatus()
	}
	return nil
}

// =============================================================================
// AUTH
// =============================================================================

func (m *Model) login(msg components.LoginSubmitMsg) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		_, err := gw.Login(ctx, msg.Username, msg.Password, msg.OTP)
		return loginResultMsg{err: err}
	}
}

func (m *Model) logout() tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		return logoutResultMsg{err: gw.Logout(ctx)}
	}
}

func (m *Model) checkStatus() tea.Cmd {
	if m.status == nil {
		return nil
	}
	m.message = "checking server status..."
	status := m.status
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()
		st, err := status.Status(ctx)
		return statusResultMsg{status: st, err: err}
	}
}

// onAuthChanged moves between screens and starts or stops the controller.
func (m *Model) onAuthChanged(msg AuthChangedMsg) tea.Cmd {
	st := msg.State
	if st.LoggedIn {
		user := st.User
		m.user = &user
		m.screen = ScreenPortal
		m.server = nil
		m.message = ""
		m.form.Reset()
	} else if m.screen == ScreenPortal {
		m.toLogin("")
	}

	return m.ctrl.Update(session.LoginStateMsg{
		LoggedIn:            st.LoggedIn,
		MaxInactiveInterval: st.MaxInactiveInterval,
	})
}

func (m *Model) toLogin(notice string) {
	m.screen = ScreenLogin
	m.user = nil
	m.server = nil
	m.showHelp = false
	m.message = ""
	m.form.Reset()
	m.form.SetNotice(notice)
}

func loginErrorText(err error) string {
	var se *portal.StatusError
	switch {
	case errors.Is(err, portal.ErrUnauthorized):
		return "Invalid username, password or one-time code"
	case errors.Is(err, portal.ErrRateLimited):
		return "Too many attempts, wait a minute and try again"
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	default:
		return "Sign in failed: server unreachable"
	}
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func (m *Model) onConfigReloaded(msg ConfigReloadedMsg) {
	if msg.Err != nil || msg.Config == nil {
		return
	}
	if err := logging.SetLevel(m.logger, msg.Config.Log.Level); err != nil {
		logrus.WithError(err).Warn("config reload")
	}
	if msg.Config.UI.Theme != m.theme.Name {
		m.applyTheme(styles.NewTheme(msg.Config.UI.Theme))
	}
}
