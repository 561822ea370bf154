// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/clock"
)

// LogoutTimeout bounds the gateway logout issued on expiry.
const LogoutTimeout = 10 * time.Second

// AuthGateway clears credentials and returns the user to the login screen.
type AuthGateway interface {
	Logout(ctx context.Context) error
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithSender sets where timer messages are delivered, usually tea.Program.Send.
func WithSender(send func(tea.Msg)) Option {
	return func(c *Controller) { c.send = send }
}

// WithRecorder sets the lifecycle event recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithActivitySource sets the source the tracker subscribes to on Start.
func WithActivitySource(src ActivitySource) Option {
	return func(c *Controller) { c.source = src }
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller binds the session state to the login state. It starts the
// countdown and keepalive schedulers on login and tears them down on logout
// or expiry.
type Controller struct {
	cfg      Config
	clock    clock.Clock
	send     func(tea.Msg)
	backend  Backend
	gateway  AuthGateway
	recorder Recorder
	source   ActivitySource
	log      *logrus.Entry

	state     State
	tracker   *ActivityTracker
	countdown *countdown
	keepAlive *keepAlive

	// gen tags timer and keepalive messages; Stop bumps it so that
	// anything already queued is ignored.
	gen    uint64
	runCtx context.Context
	cancel context.CancelFunc
}

// NewController creates a stopped controller.
func NewController(cfg Config, backend Backend, gateway AuthGateway, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:      cfg,
		clock:    clock.Real(),
		send:     func(tea.Msg) {},
		backend:  backend,
		gateway:  gateway,
		recorder: Recorders(),
		log:      logrus.WithField("component", "session"),
		state:    State{TimeoutMinutes: cfg.TimeoutMinutes},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.source == nil {
		c.source = NewListeners()
	}
	c.tracker = newActivityTracker(&c.state, c.clock, cfg.ActivityDebounce, c.onActivity)
	c.countdown = &countdown{clock: c.clock, interval: cfg.CountdownInterval}
	c.keepAlive = &keepAlive{clock: c.clock, interval: cfg.KeepAliveInterval}
	return c
}

// SetSender sets where timer messages are delivered. Call it before Start;
// tea.Program.Send is only available once the program exists.
func (c *Controller) SetSender(send func(tea.Msg)) {
	if send != nil {
		c.send = send
	}
}

// Source returns the activity source the tracker subscribes to.
func (c *Controller) Source() ActivitySource {
	return c.source
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() View {
	return View{
		RemainingSeconds: c.state.RemainingSeconds,
		WarningVisible:   c.state.WarningVisible,
		TimeoutMinutes:   c.state.TimeoutMinutes,
		Running:          c.state.Running,
		LastActivity:     c.state.LastActivity,
	}
}

// Running reports whether the schedulers are active.
func (c *Controller) Running() bool {
	return c.state.Running
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins a session. Calling it while running does nothing.
func (c *Controller) Start() {
	if c.cancel != nil {
		return
	}
	now := c.clock.Now()

	c.gen++
	c.runCtx, c.cancel = context.WithCancel(context.Background())

	timeout := c.state.TimeoutMinutes
	if timeout <= 0 {
		timeout = c.cfg.TimeoutMinutes
	}
	c.state = State{
		TimeoutMinutes:   timeout,
		LastActivity:     now,
		RemainingSeconds: timeout * 60,
		WarningVisible:   false,
		Running:          true,
	}

	c.tracker.Attach(c.source)
	c.countdown.arm(c.gen, c.send)
	c.keepAlive.arm(c.gen, c.send)

	c.log.WithField("timeout_minutes", timeout).Info("session started")
	c.record(EventStarted, now, "")
}

// Stop ends the session. Timers are stopped, in-flight keepalives are
// cancelled and the activity subscription is removed. Calling it while
// stopped does nothing.
func (c *Controller) Stop() {
	if c.cancel == nil {
		return
	}
	now := c.clock.Now()

	c.state.Running = false
	c.gen++
	c.countdown.cancel()
	c.keepAlive.cancel()
	c.cancel()
	c.cancel = nil
	c.runCtx = nil
	c.tracker.Detach()

	remaining, timeout := c.state.RemainingSeconds, c.state.TimeoutMinutes
	c.state = State{TimeoutMinutes: c.cfg.TimeoutMinutes}

	c.log.Info("session stopped")
	c.recorder.Record(Event{
		Kind:             EventStopped,
		At:               now,
		RemainingSeconds: remaining,
		TimeoutMinutes:   timeout,
	})
}

// ExtendSession resets the countdown and sends a keepalive regardless of
// recent activity. It does nothing while stopped.
func (c *Controller) ExtendSession() tea.Cmd {
	if !c.state.Running {
		return nil
	}
	now := c.clock.Now()

	c.state.LastActivity = now
	c.state.RemainingSeconds = c.state.TimeoutMinutes * 60
	c.state.WarningVisible = false

	c.log.Info("session extended")
	c.record(EventExtended, now, "")
	c.record(EventKeepAliveSent, now, "extend")
	return c.keepAliveCmd()
}

// expire tears the session down and hands logout to the gateway.
func (c *Controller) expire(now time.Time) tea.Cmd {
	timeout := c.state.TimeoutMinutes
	c.Stop()

	c.log.WithField("timeout_minutes", timeout).Warn("session expired after inactivity")
	c.recorder.Record(Event{Kind: EventExpired, At: now, TimeoutMinutes: timeout})

	gateway, log := c.gateway, c.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), LogoutTimeout)
		defer cancel()
		err := gateway.Logout(ctx)
		if err != nil {
			log.WithError(err).Warn("logout after expiry failed")
		}
		return ExpiredMsg{At: now, Err: err}
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles session messages and ignores everything else.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LoginStateMsg:
		if !msg.LoggedIn {
			c.Stop()
			return nil
		}
		if !c.state.Running && msg.MaxInactiveInterval >= 60 {
			c.state.TimeoutMinutes = msg.MaxInactiveInterval / 60
		}
		c.Start()

	case ExtendMsg:
		return c.ExtendSession()

	case countdownTickMsg:
		return c.handleCountdownTick(msg)

	case keepAliveTickMsg:
		return c.handleKeepAliveTick(msg)

	case keepAliveResultMsg:
		c.handleKeepAliveResult(msg)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// refresh recomputes the derived fields and reports the warning edge.
func (c *Controller) refresh(now time.Time) {
	wasVisible := c.state.WarningVisible
	c.state.recompute(now, c.cfg.WarningThreshold)
	if c.state.WarningVisible && !wasVisible {
		c.log.WithField("remaining_seconds", c.state.RemainingSeconds).Info("session timeout warning")
		c.record(EventWarning, now, "")
	}
}

func (c *Controller) onActivity(kind ActivityKind, now time.Time) {
	c.refresh(now)
	c.record(EventActivity, now, kind.String())
}

func (c *Controller) record(kind EventKind, at time.Time, detail string) {
	c.recorder.Record(Event{
		Kind:             kind,
		At:               at,
		RemainingSeconds: c.state.RemainingSeconds,
		TimeoutMinutes:   c.state.TimeoutMinutes,
		Detail:           detail,
	})
}
