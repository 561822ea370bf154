// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/portal-tui/internal/auth"
	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/ui/components"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// =============================================================================
// TEST HARNESS
// =============================================================================

type fakeClient struct {
	mu       sync.Mutex
	token    string
	loginErr error
	logouts  int
}

func (f *fakeClient) Login(ctx context.Context, creds portal.Credentials) (*portal.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	token := f.token
	if token == "" {
		token = "opaque"
	}
	return &portal.LoginResponse{
		Token: token,
		User: portal.User{
			Username:    creds.Username,
			DisplayName: "Research Analyst",
			Role:        "ANALYST",
			Department:  "Equity Research",
		},
		SessionID:           "sid-1",
		MaxInactiveInterval: 1800,
	}, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeClient) Logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

type fakeBackend struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeBackend) KeepAlive(ctx context.Context) (*portal.KeepAliveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &portal.KeepAliveResponse{Extended: true}, nil
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStatus struct {
	resp *portal.StatusResponse
}

func (f *fakeStatus) Status(ctx context.Context) (*portal.StatusResponse, error) {
	return f.resp, nil
}

// harness stands in for tea.Program: sent messages are queued and pumped
// through the model, and commands run inline.
type harness struct {
	t       *testing.T
	clk     *clock.Manual
	client  *fakeClient
	backend *fakeBackend
	status  *fakeStatus
	gateway *auth.Gateway
	ctrl    *session.Controller
	logger  *logrus.Logger
	m       *Model

	mu    sync.Mutex
	queue []tea.Msg
	quit  bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clk:     clock.NewManual(epoch),
		client:  &fakeClient{},
		backend: &fakeBackend{},
		status:  &fakeStatus{},
		logger:  logrus.New(),
	}
	h.logger.SetOutput(io.Discard)

	listeners := session.NewListeners()
	h.gateway = auth.NewGateway(h.client, auth.WithClock(h.clk))
	h.ctrl = session.NewController(session.DefaultConfig(), h.backend, h.gateway,
		session.WithClock(h.clk),
		session.WithSender(h.send),
		session.WithActivitySource(listeners),
	)
	h.gateway.Subscribe(func(st auth.State) { h.send(AuthChangedMsg{State: st}) })

	h.m = New(Deps{
		Controller: h.ctrl,
		Gateway:    h.gateway,
		Activity:   listeners,
		Status:     h.status,
		Theme:      styles.NewTheme(styles.ThemeDark),
		Logger:     h.logger,
		Backend:    "127.0.0.1:8080",
	})
	h.dispatch(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, msg)
}

func (h *harness) dispatch(msg tea.Msg) {
	_, cmd := h.m.Update(msg)
	h.run(cmd)
	h.pump()
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	case tea.QuitMsg:
		h.quit = true
	default:
		h.dispatch(msg)
	}
}

func (h *harness) pump() {
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return
		}
		msg := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()
		h.dispatch(msg)
	}
}

// advance moves time forward one second at a time so every tick is seen.
func (h *harness) advance(d time.Duration) {
	for step := time.Duration(0); step < d; step += time.Second {
		h.clk.Advance(time.Second)
		h.pump()
	}
}

func (h *harness) login() {
	h.t.Helper()
	h.dispatch(components.LoginSubmitMsg{Username: "analyst", Password: "analyst"})
	require.Equal(h.t, ScreenPortal, h.m.Screen())
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// =============================================================================
// LOGIN
// =============================================================================

func TestModel_StartsOnLogin(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.False(t, h.ctrl.Running())
	assert.Contains(t, h.m.View(), "Sign in to the Research Portal")
}

func TestModel_LoginStartsSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	view := h.m.Session()
	assert.True(t, view.Running)
	assert.Equal(t, 30, view.TimeoutMinutes)
	assert.Equal(t, 1800, view.RemainingSeconds)

	out := h.m.View()
	assert.Contains(t, out, "Research Analyst")
	assert.Contains(t, out, "sid-1")
	assert.Contains(t, out, "session 30:00")
}

func TestModel_LoginError(t *testing.T) {
	h := newHarness(t)
	h.client.loginErr = portal.ErrUnauthorized

	h.dispatch(components.LoginSubmitMsg{Username: "analyst", Password: "nope"})
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.False(t, h.ctrl.Running())
	assert.Contains(t, h.m.View(), "Invalid username")
}

// =============================================================================
// ACTIVITY AND WARNING
// =============================================================================

func TestModel_KeyPressIsActivity(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.advance(60 * time.Second)
	assert.Equal(t, 1740, h.m.Session().RemainingSeconds)

	h.dispatch(keyRune('x'))
	assert.Equal(t, h.clk.Now(), h.m.Session().LastActivity)
	assert.Equal(t, 1800, h.m.Session().RemainingSeconds)
}

func TestModel_MouseMotionIsActivity(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.advance(30 * time.Second)
	h.dispatch(tea.MouseMsg{Type: tea.MouseMotion, X: 3, Y: 4})
	assert.Equal(t, h.clk.Now(), h.m.Session().LastActivity)
}

func TestModel_WarningAndExtend(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.advance(1500 * time.Second)
	require.True(t, h.m.Session().WarningVisible)
	out := h.m.View()
	assert.Contains(t, out, "Session expiring")
	assert.Contains(t, out, "5:00")

	h.dispatch(keyRune('e'))
	view := h.m.Session()
	assert.False(t, view.WarningVisible)
	assert.Equal(t, 1800, view.RemainingSeconds)
	assert.Equal(t, 1, h.backend.Calls())
	assert.NotContains(t, h.m.View(), "Session expiring")
}

func TestModel_ExpiryReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.advance(1800 * time.Second)
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.False(t, h.ctrl.Running())
	assert.Equal(t, 1, h.client.Logouts())
	assert.Contains(t, h.m.View(), "Your session expired")

	// Time keeps passing without further logouts.
	h.advance(10 * time.Second)
	assert.Equal(t, 1, h.client.Logouts())
}

func TestModel_TokenExpiryStopsSession(t *testing.T) {
	h := newHarness(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "analyst",
		ExpiresAt: jwt.NewNumericDate(epoch.Add(10 * time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	h.client.token = tok
	h.login()
	require.True(t, h.ctrl.Running())

	for i := 0; i < 9; i++ {
		h.advance(time.Minute)
		h.dispatch(keyRune('x'))
	}
	require.True(t, h.ctrl.Running())

	h.advance(time.Minute)
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.False(t, h.ctrl.Running())
	assert.False(t, h.gateway.IsLoggedIn())
	assert.Equal(t, 0, h.client.Logouts())
	assert.Equal(t, 0, h.clk.Pending())
}

// =============================================================================
// KEYS
// =============================================================================

func TestModel_LogoutKey(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.dispatch(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.False(t, h.ctrl.Running())
	assert.Equal(t, 1, h.client.Logouts())
	assert.NotContains(t, h.m.View(), "Your session expired")
}

func TestModel_QuitStopsSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.dispatch(keyRune('q'))
	assert.True(t, h.quit)
	assert.False(t, h.ctrl.Running())
}

func TestModel_CtrlCQuitsFromLogin(t *testing.T) {
	h := newHarness(t)

	h.dispatch(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, h.quit)
}

func TestModel_HelpToggle(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.dispatch(keyRune('?'))
	assert.Contains(t, h.m.View(), "inactivity")
	h.dispatch(keyRune('?'))
	assert.Contains(t, h.m.View(), "Signed in as")
}

func TestModel_StatusRefresh(t *testing.T) {
	h := newHarness(t)
	h.status.resp = &portal.StatusResponse{Active: true, ExpiresInSeconds: 1200, MaxInactiveInterval: 1800}
	h.login()

	h.dispatch(keyRune('r'))
	assert.Contains(t, h.m.View(), "active, expires in 20m")
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func TestModel_ConfigReload(t *testing.T) {
	h := newHarness(t)
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.UI.Theme = styles.ThemeLight

	h.dispatch(ConfigReloadedMsg{Config: cfg})
	assert.Equal(t, logrus.DebugLevel, h.logger.GetLevel())
	assert.Equal(t, styles.ThemeLight, h.m.theme.Name)

	// A failed reload changes nothing.
	h.dispatch(ConfigReloadedMsg{Err: assert.AnError})
	assert.Equal(t, logrus.DebugLevel, h.logger.GetLevel())
}
