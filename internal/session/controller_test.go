// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	resp  *portal.KeepAliveResponse
	err   error
}

func (f *fakeBackend) KeepAlive(ctx context.Context) (*portal.KeepAliveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &portal.KeepAliveResponse{Extended: true}, nil
	}
	return f.resp, nil
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGateway struct {
	logouts int
	err     error
}

func (g *fakeGateway) Logout(context.Context) error {
	g.logouts++
	return g.err
}

// harness plays the part of the tea.Program event loop: timer callbacks
// enqueue messages and pump feeds them through Update, running returned
// commands inline.
type harness struct {
	t       *testing.T
	clk     *clock.Manual
	src     *Listeners
	backend *fakeBackend
	gateway *fakeGateway
	ctrl    *Controller

	mu     sync.Mutex
	queue  []tea.Msg
	seen   []tea.Msg
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clk:     clock.NewManual(epoch),
		src:     NewListeners(),
		backend: &fakeBackend{},
		gateway: &fakeGateway{},
	}
	h.ctrl = NewController(DefaultConfig(), h.backend, h.gateway,
		WithClock(h.clk),
		WithSender(h.send),
		WithActivitySource(h.src),
		WithRecorder(RecorderFunc(func(e Event) { h.events = append(h.events, e) })),
	)
	return h
}

func (h *harness) send(msg tea.Msg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, msg)
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

		h.seen = append(h.seen, msg)
		h.run(h.ctrl.Update(msg))
	}
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
	default:
		h.send(msg)
	}
}

// advance moves simulated time one second at a time, pumping after each.
func (h *harness) advance(d time.Duration) {
	for step := time.Duration(0); step < d; step += time.Second {
		h.clk.Advance(time.Second)
		h.pump()
	}
}

// at advances to the given offset from epoch.
func (h *harness) at(offset time.Duration) {
	h.advance(epoch.Add(offset).Sub(h.clk.Now()))
}

func (h *harness) login() {
	h.run(h.ctrl.Update(LoginStateMsg{LoggedIn: true}))
	h.pump()
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, e := range h.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (h *harness) expiredMsgs() int {
	n := 0
	for _, m := range h.seen {
		if _, ok := m.(ExpiredMsg); ok {
			n++
		}
	}
	return n
}

func intPtr(v int) *int { return &v }

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestStart_ResetsState(t *testing.T) {
	h := newHarness(t)
	h.login()

	v := h.ctrl.Snapshot()
	assert.True(t, v.Running)
	assert.Equal(t, 1800, v.RemainingSeconds)
	assert.False(t, v.WarningVisible)
	assert.Equal(t, epoch, v.LastActivity)
	assert.Equal(t, 1, h.src.Len())
	assert.Equal(t, 2, h.clk.Pending(), "countdown and keepalive armed")
}

func TestStart_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.at(30 * time.Second)
	h.login()

	assert.Equal(t, 2, h.clk.Pending())
	assert.Equal(t, 1, h.src.Len())
	assert.Equal(t, 1, h.count(EventStarted))
	assert.Equal(t, epoch, h.ctrl.Snapshot().LastActivity, "second start does not reset")
}

func TestStop_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.ctrl.Stop()
	h.ctrl.Stop()
	h.run(h.ctrl.Update(LoginStateMsg{LoggedIn: false}))

	assert.False(t, h.ctrl.Running())
	assert.Equal(t, 0, h.clk.Pending())
	assert.Equal(t, 0, h.src.Len())
	assert.Equal(t, 1, h.count(EventStopped))
}

func TestStop_BeforeStartIsSafe(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Stop()
	assert.Equal(t, 0, h.count(EventStopped))
}

func TestStop_NoMutationAfterwards(t *testing.T) {
	for _, offset := range []time.Duration{0, 10 * time.Second, 1500 * time.Second, 1799 * time.Second} {
		t.Run(offset.String(), func(t *testing.T) {
			h := newHarness(t)
			h.login()
			h.at(offset)

			h.ctrl.Stop()
			before := h.ctrl.Snapshot()
			events := len(h.events)

			h.advance(2 * time.Hour)
			h.src.Emit(KeyPress)

			assert.Equal(t, before, h.ctrl.Snapshot())
			assert.Equal(t, events, len(h.events))
			assert.Equal(t, 0, h.gateway.logouts)
		})
	}
}

func TestStop_StragglerTickIgnored(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.at(100 * time.Second)

	// A tick that was already queued when Stop ran.
	stale := countdownTickMsg{gen: h.ctrl.gen}
	h.ctrl.Stop()
	before := h.ctrl.Snapshot()

	assert.Nil(t, h.ctrl.Update(stale))
	assert.Equal(t, before, h.ctrl.Snapshot())
	assert.Equal(t, 0, h.clk.Pending())
}

// =============================================================================
// COUNTDOWN TESTS
// =============================================================================

func TestCountdown_WarningAndExpiryScenario(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.at(1499 * time.Second)
	v := h.ctrl.Snapshot()
	assert.Equal(t, 301, v.RemainingSeconds)
	assert.False(t, v.WarningVisible)

	h.at(1500 * time.Second)
	v = h.ctrl.Snapshot()
	assert.Equal(t, 300, v.RemainingSeconds)
	assert.True(t, v.WarningVisible)
	assert.Equal(t, 1, h.count(EventWarning))

	h.at(1799 * time.Second)
	assert.Equal(t, 1, h.ctrl.Snapshot().RemainingSeconds)
	assert.Equal(t, 0, h.gateway.logouts)

	h.at(1800 * time.Second)
	v = h.ctrl.Snapshot()
	assert.Equal(t, 0, v.RemainingSeconds)
	assert.False(t, v.WarningVisible)
	assert.False(t, v.Running)
	assert.Equal(t, 1, h.gateway.logouts)
	assert.Equal(t, 1, h.expiredMsgs())
	assert.Equal(t, 1, h.count(EventExpired))

	h.advance(time.Hour)
	assert.Equal(t, 1, h.gateway.logouts, "expiry fires exactly once")
	assert.Equal(t, 0, h.clk.Pending())
	assert.Equal(t, 0, h.src.Len())
	assert.Equal(t, 0, h.backend.Calls(), "no keepalive without recent activity")
}

func TestCountdown_ExpiresOnceForAnyTimeout(t *testing.T) {
	for _, timeout := range []int{1, 2, 7} {
		h := newHarness(t)
		h.ctrl.cfg.TimeoutMinutes = timeout
		h.ctrl.state.TimeoutMinutes = timeout
		h.login()

		h.at(time.Duration(timeout*60-1) * time.Second)
		require.Equal(t, 0, h.gateway.logouts, "T=%d", timeout)

		h.advance(time.Duration(timeout*60+30) * time.Second)
		assert.Equal(t, 1, h.gateway.logouts, "T=%d", timeout)
	}
}

func TestCountdown_ActivityHidesWarning(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.at(1600 * time.Second)
	require.True(t, h.ctrl.Snapshot().WarningVisible)

	h.src.Emit(KeyPress)

	v := h.ctrl.Snapshot()
	assert.False(t, v.WarningVisible)
	assert.Equal(t, 1800, v.RemainingSeconds)
	assert.Equal(t, epoch.Add(1600*time.Second), v.LastActivity)
}

func TestActivity_DebouncedThroughController(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.at(20 * time.Second)
	h.src.Emit(PointerMove)
	assert.Equal(t, epoch.Add(20*time.Second), h.ctrl.Snapshot().LastActivity)

	h.at(25 * time.Second)
	h.src.Emit(KeyPress)
	assert.Equal(t, epoch.Add(20*time.Second), h.ctrl.Snapshot().LastActivity)

	h.at(31 * time.Second)
	h.src.Emit(PointerClick)
	assert.Equal(t, epoch.Add(31*time.Second), h.ctrl.Snapshot().LastActivity)
	assert.Equal(t, 2, h.count(EventActivity))
}

// =============================================================================
// KEEPALIVE TESTS
// =============================================================================

func TestKeepAlive_SentWhenRecentlyActive(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.at(180 * time.Second)
	h.src.Emit(KeyPress)

	h.at(300 * time.Second)
	assert.Equal(t, 1, h.backend.Calls(), "inactive 120s at the 300s tick")
	assert.Equal(t, 1, h.count(EventKeepAliveOK))
}

func TestKeepAlive_SkippedWhenInactive(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.at(200 * time.Second)
	h.src.Emit(KeyPress)

	h.at(300 * time.Second)
	require.Equal(t, 1, h.backend.Calls())

	h.at(600 * time.Second)
	assert.Equal(t, 1, h.backend.Calls(), "inactive 400s at the 600s tick")
	assert.Equal(t, 1, h.count(EventKeepAliveSkipped))
	assert.True(t, h.ctrl.Running())
	assert.Equal(t, 1800-400, h.ctrl.Snapshot().RemainingSeconds, "countdown unaffected")
}

func TestKeepAlive_UpdatesTimeout(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(2400)}
	h.login()

	h.at(120 * time.Second)
	h.src.Emit(KeyPress)
	h.at(300 * time.Second)

	v := h.ctrl.Snapshot()
	assert.Equal(t, 40, v.TimeoutMinutes)
	assert.Equal(t, 2400-180, v.RemainingSeconds)
	assert.Equal(t, epoch.Add(120*time.Second), v.LastActivity, "keepalive never moves last activity")
	assert.Equal(t, 1, h.count(EventTimeoutChanged))
}

func TestKeepAlive_MissingIntervalLeavesTimeout(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true}
	h.login()

	h.run(h.ctrl.ExtendSession())
	h.pump()

	assert.Equal(t, 1, h.backend.Calls())
	assert.Equal(t, 30, h.ctrl.Snapshot().TimeoutMinutes)
	assert.Equal(t, 0, h.count(EventTimeoutChanged))
}

func TestKeepAlive_SubMinuteIntervalIgnored(t *testing.T) {
	for _, secs := range []int{0, 59, -1} {
		h := newHarness(t)
		h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(secs)}
		h.login()

		h.run(h.ctrl.ExtendSession())
		h.pump()

		assert.Equal(t, 30, h.ctrl.Snapshot().TimeoutMinutes, "secs=%d", secs)
	}
}

func TestKeepAlive_FailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.backend.err = errors.New("connection refused")
	h.login()

	h.at(100 * time.Second)
	h.src.Emit(KeyPress)
	h.at(299 * time.Second)
	before := h.ctrl.Snapshot()

	// Deliver the tick by itself so the only change is the failed result.
	h.clk.Advance(time.Second)
	h.mu.Lock()
	queued := h.queue
	h.queue = nil
	h.mu.Unlock()

	var keepAliveTick tea.Msg
	for _, m := range queued {
		if _, ok := m.(keepAliveTickMsg); ok {
			keepAliveTick = m
		}
	}
	require.NotNil(t, keepAliveTick)

	cmd := h.ctrl.Update(keepAliveTick)
	require.NotNil(t, cmd)
	h.ctrl.Update(cmd())

	after := h.ctrl.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, 1, h.count(EventKeepAliveFailed))
	assert.True(t, after.Running)
}

func TestKeepAlive_ResultAfterStopDiscarded(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(3600)}
	h.login()

	inFlight := h.ctrl.ExtendSession()
	require.NotNil(t, inFlight)
	h.ctrl.Stop()
	before := h.ctrl.Snapshot()

	h.ctrl.Update(inFlight())

	assert.Equal(t, before, h.ctrl.Snapshot())
	assert.Equal(t, 1, h.count(EventKeepAliveDiscarded))
}

func TestKeepAlive_ResultFromPreviousRunDiscarded(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(3600)}
	h.login()

	inFlight := h.ctrl.ExtendSession()
	h.ctrl.Stop()
	h.login()

	h.ctrl.Update(inFlight())

	assert.True(t, h.ctrl.Running())
	assert.Equal(t, 30, h.ctrl.Snapshot().TimeoutMinutes)
}

func TestKeepAlive_ContextCancelledOnStop(t *testing.T) {
	h := newHarness(t)
	h.login()
	ctx := h.ctrl.runCtx

	h.ctrl.Stop()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestKeepAlive_ShorterIntervalExpiresOnNextTick(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(60)}
	h.login()

	h.at(100 * time.Second)
	h.src.Emit(KeyPress)

	// The keepalive at 300s shrinks the budget to one minute while 200s
	// have already elapsed. Its result lands after that second's countdown
	// tick, so expiry waits for the next one.
	h.at(300 * time.Second)
	v := h.ctrl.Snapshot()
	assert.Equal(t, 1, v.TimeoutMinutes)
	assert.Equal(t, 0, v.RemainingSeconds)
	assert.False(t, v.WarningVisible)
	assert.True(t, v.Running)
	assert.Equal(t, 0, h.gateway.logouts)

	h.advance(time.Second)
	assert.Equal(t, 1, h.gateway.logouts)
	assert.False(t, h.ctrl.Running())
}

func TestKeepAlive_ActivityAfterShrunkBudgetDoesNotRevive(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(60)}
	h.login()

	h.at(100 * time.Second)
	h.src.Emit(KeyPress)
	h.at(300 * time.Second)
	require.Equal(t, 0, h.ctrl.Snapshot().RemainingSeconds)

	h.clk.Advance(500 * time.Millisecond)
	h.src.Emit(KeyPress)

	v := h.ctrl.Snapshot()
	assert.Equal(t, epoch.Add(100*time.Second), v.LastActivity)
	assert.Equal(t, 0, v.RemainingSeconds)

	h.advance(time.Second)
	assert.Equal(t, 1, h.gateway.logouts)
	assert.False(t, h.ctrl.Running())
}

// =============================================================================
// EXTEND TESTS
// =============================================================================

func TestExtendSession_ResetsCountdown(t *testing.T) {
	for _, offset := range []time.Duration{10 * time.Second, 1000 * time.Second, 1700 * time.Second} {
		t.Run(offset.String(), func(t *testing.T) {
			h := newHarness(t)
			h.login()
			h.at(offset)

			h.run(h.ctrl.Update(ExtendMsg{}))

			v := h.ctrl.Snapshot()
			assert.Equal(t, 1800, v.RemainingSeconds)
			assert.False(t, v.WarningVisible)
			assert.Equal(t, epoch.Add(offset), v.LastActivity)

			h.pump()
			assert.Equal(t, 1, h.backend.Calls(), "extend bypasses the recency check")
		})
	}
}

func TestExtendSession_NoopWhenStopped(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.ctrl.ExtendSession())
	assert.Equal(t, 0, h.backend.Calls())
}

func TestExtendSession_DelaysExpiry(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.at(1700 * time.Second)
	h.run(h.ctrl.ExtendSession())
	h.pump()

	h.at(1800 * time.Second)
	assert.Equal(t, 0, h.gateway.logouts)
	assert.True(t, h.ctrl.Running())

	h.at(3500 * time.Second)
	assert.Equal(t, 1, h.gateway.logouts)
}

// =============================================================================
// LOGIN STATE TESTS
// =============================================================================

func TestLoginState_SeedsTimeout(t *testing.T) {
	h := newHarness(t)
	h.run(h.ctrl.Update(LoginStateMsg{LoggedIn: true, MaxInactiveInterval: 900}))

	v := h.ctrl.Snapshot()
	assert.Equal(t, 15, v.TimeoutMinutes)
	assert.Equal(t, 900, v.RemainingSeconds)
}

func TestLoginState_LogoutResetsTimeout(t *testing.T) {
	h := newHarness(t)
	h.run(h.ctrl.Update(LoginStateMsg{LoggedIn: true, MaxInactiveInterval: 900}))
	h.run(h.ctrl.Update(LoginStateMsg{LoggedIn: false}))
	h.login()

	assert.Equal(t, 30, h.ctrl.Snapshot().TimeoutMinutes)
}

func TestStop_RecordsTimeoutOfEndedSession(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = &portal.KeepAliveResponse{Extended: true, MaxInactiveInterval: intPtr(2400)}
	h.login()

	h.at(100 * time.Second)
	h.src.Emit(KeyPress)
	h.at(300 * time.Second)
	require.Equal(t, 40, h.ctrl.Snapshot().TimeoutMinutes)

	h.ctrl.Stop()

	last := h.events[len(h.events)-1]
	assert.Equal(t, EventStopped, last.Kind)
	assert.Equal(t, 40, last.TimeoutMinutes)
	assert.Equal(t, 30, h.ctrl.Snapshot().TimeoutMinutes)
}

func TestExpiry_LogoutFailureLoggedWithComponent(t *testing.T) {
	hook := logtest.NewLocal(logrus.StandardLogger())
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	h := newHarness(t)
	h.gateway.err = errors.New("backend down")
	h.login()
	h.at(1800 * time.Second)
	require.Equal(t, 1, h.gateway.logouts)

	var found *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "logout after expiry failed" {
			found = e
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "session", found.Data["component"])
	assert.Equal(t, logrus.WarnLevel, found.Level)
}

func TestUpdate_IgnoresUnknownMessages(t *testing.T) {
	h := newHarness(t)
	h.login()
	assert.Nil(t, h.ctrl.Update(tea.WindowSizeMsg{Width: 80}))
}

// =============================================================================
// REAL CLOCK
// =============================================================================

func TestController_RealClockNoLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	msgs := make(chan tea.Msg, 64)
	cfg := DefaultConfig()
	cfg.CountdownInterval = 5 * time.Millisecond
	cfg.KeepAliveInterval = 7 * time.Millisecond

	ctrl := NewController(cfg, &fakeBackend{}, &fakeGateway{},
		WithSender(func(m tea.Msg) { msgs <- m }))
	ctrl.Start()

	select {
	case m := <-msgs:
		ctrl.Update(m)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick delivered")
	}

	ctrl.Stop()
	before := ctrl.Snapshot()

	time.Sleep(30 * time.Millisecond)
drain:
	for {
		select {
		case m := <-msgs:
			assert.Nil(t, ctrl.Update(m))
		default:
			break drain
		}
	}
	assert.Equal(t, before, ctrl.Snapshot())
}
