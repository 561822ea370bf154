// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// Backend extends the server-side session.
type Backend interface {
	KeepAlive(ctx context.Context) (*portal.KeepAliveResponse, error)
}

// keepAlive owns the periodic keepalive timer.
type keepAlive struct {
	clock    clock.Clock
	interval time.Duration
	timer    clock.Timer
}

func (k *keepAlive) arm(gen uint64, send func(tea.Msg)) {
	k.cancel()
	k.timer = k.clock.AfterFunc(k.interval, func() {
		send(keepAliveTickMsg{gen: gen})
	})
}

func (k *keepAlive) cancel() {
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// handleKeepAliveTick issues a keepalive when the user was recently active.
// The next tick is armed either way; a failed call is retried only by it.
func (c *Controller) handleKeepAliveTick(msg keepAliveTickMsg) tea.Cmd {
	if msg.gen != c.gen || !c.state.Running {
		return nil
	}
	c.keepAlive.timer = nil
	c.keepAlive.arm(c.gen, c.send)

	now := c.clock.Now()
	inactive := now.Sub(c.state.LastActivity)
	if inactive >= c.cfg.KeepAliveRecency {
		c.log.WithField("inactive", inactive.String()).Debug("keepalive skipped")
		c.record(EventKeepAliveSkipped, now, inactive.String())
		return nil
	}

	c.record(EventKeepAliveSent, now, "periodic")
	return c.keepAliveCmd()
}

// keepAliveCmd runs the request off the loop. The result carries the
// generation it was issued under.
func (c *Controller) keepAliveCmd() tea.Cmd {
	ctx, gen, backend := c.runCtx, c.gen, c.backend
	return func() tea.Msg {
		resp, err := backend.KeepAlive(ctx)
		return keepAliveResultMsg{gen: gen, resp: resp, err: err}
	}
}

// handleKeepAliveResult applies a keepalive acknowledgment. Results from a
// previous run are dropped.
func (c *Controller) handleKeepAliveResult(msg keepAliveResultMsg) {
	now := c.clock.Now()
	if msg.gen != c.gen || !c.state.Running {
		c.log.Debug("discarding keepalive result from stopped session")
		c.record(EventKeepAliveDiscarded, now, "")
		return
	}

	if msg.err != nil {
		c.log.WithError(msg.err).Warn("keepalive failed")
		c.record(EventKeepAliveFailed, now, msg.err.Error())
		return
	}
	c.record(EventKeepAliveOK, now, "")

	if msg.resp == nil || msg.resp.MaxInactiveInterval == nil {
		return
	}
	secs := *msg.resp.MaxInactiveInterval
	minutes := secs / 60
	if minutes < 1 {
		c.log.WithField("max_inactive_interval", secs).Debug("ignoring keepalive interval under one minute")
		return
	}
	if minutes == c.state.TimeoutMinutes {
		return
	}

	c.log.WithFields(logrus.Fields{
		"from": c.state.TimeoutMinutes,
		"to":   minutes,
	}).Info("session timeout updated by backend")
	c.state.TimeoutMinutes = minutes
	c.refresh(now)
	c.record(EventTimeoutChanged, now, strconv.Itoa(minutes))
}
