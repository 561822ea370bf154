// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/portal-tui/internal/clock"
)

// countdown owns the one-second timer. It is re-armed after every handled
// tick, so at most one tick is ever pending.
type countdown struct {
	clock    clock.Clock
	interval time.Duration
	timer    clock.Timer
}

func (c *countdown) arm(gen uint64, send func(tea.Msg)) {
	c.cancel()
	c.timer = c.clock.AfterFunc(c.interval, func() {
		send(countdownTickMsg{gen: gen})
	})
}

func (c *countdown) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// handleCountdownTick recomputes the remaining time and fires expiry once
// it reaches zero.
func (c *Controller) handleCountdownTick(msg countdownTickMsg) tea.Cmd {
	if msg.gen != c.gen || !c.state.Running {
		return nil
	}
	c.countdown.timer = nil

	now := c.clock.Now()
	c.refresh(now)
	c.record(EventCountdown, now, "")

	if c.state.RemainingSeconds > 0 {
		c.countdown.arm(c.gen, c.send)
		return nil
	}

	// Fence before anything else so no later message can re-enter expiry.
	c.state.Running = false
	return c.expire(now)
}
