// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model of the portal TUI.
//
// The model owns no session logic. It forwards every message to the
// session controller, turns terminal input into activity on the
// controller's activity source, and switches between the login and portal
// screens as the auth gateway reports changes.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/auth"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/components"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// RequestTimeout bounds login, logout and status calls made from the UI.
const RequestTimeout = 15 * time.Second

// Screen is the visible screen.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenPortal
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenPortal:
		return "portal"
	default:
		return "unknown"
	}
}

// StatusChecker reports the backend's view of the session.
type StatusChecker interface {
	Status(ctx context.Context) (*portal.StatusResponse, error)
}

// Deps are the collaborators of the model.
type Deps struct {
	Controller *session.Controller
	Gateway    *auth.Gateway
	Activity   *session.Listeners
	Status     StatusChecker
	Theme      *styles.Theme
	Logger     *logrus.Logger
	Backend    string
}

// Model is the root model.
type Model struct {
	ctrl     *session.Controller
	gateway  *auth.Gateway
	activity *session.Listeners
	status   StatusChecker
	logger   *logrus.Logger
	backend  string

	theme     *styles.Theme
	keys      KeyMap
	help      help.Model
	form      *components.LoginForm
	warning   components.SessionWarning
	statusBar *components.StatusBar
	helpPanel *components.HelpPanel

	screen   Screen
	user     *portal.User
	showHelp bool
	message  string
	server   *portal.StatusResponse
	width    int
	height   int
}

// New creates the model on the login screen.
func New(d Deps) *Model {
	theme := d.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &Model{
		ctrl:     d.Controller,
		gateway:  d.Gateway,
		activity: d.Activity,
		status:   d.Status,
		logger:   logger,
		backend:  d.Backend,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		warning:  components.NewSessionWarning(),
		screen:   ScreenLogin,
		width:    80,
		height:   24,
	}
	m.applyTheme(theme)
	return m
}

func (m *Model) applyTheme(theme *styles.Theme) {
	m.theme = theme
	if m.form == nil {
		m.form = components.NewLoginForm(theme)
	} else {
		m.form.SetTheme(theme)
	}
	m.form.SetWidth(m.width)
	m.statusBar = components.NewStatusBar(theme)
	m.statusBar.SetWidth(m.width)
	m.helpPanel = components.NewHelpPanel(theme.IsDark)
}

// Init starts the login form cursor.
func (m *Model) Init() tea.Cmd {
	return m.form.Init()
}

// Screen returns the visible screen.
func (m *Model) Screen() Screen {
	return m.screen
}

// Session returns the controller's current view.
func (m *Model) Session() session.View {
	return m.ctrl.Snapshot()
}
