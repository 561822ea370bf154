// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/jeranaias/portal-tui/internal/portal"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// LoginStateMsg reports a login state change from the auth gateway.
// MaxInactiveInterval, in seconds, seeds the timeout for the new session
// when the login response carried one.
type LoginStateMsg struct {
	LoggedIn            bool
	MaxInactiveInterval int
}

// ExtendMsg asks the controller to extend the session.
type ExtendMsg struct{}

// ExpiredMsg is produced after the controller logged the user out because
// the countdown reached zero. Err is the gateway's logout error, if any.
type ExpiredMsg struct {
	At  time.Time
	Err error
}

// countdownTickMsg is sent by the countdown timer.
type countdownTickMsg struct {
	gen uint64
}

// keepAliveTickMsg is sent by the keepalive timer.
type keepAliveTickMsg struct {
	gen uint64
}

// keepAliveResultMsg carries a finished keepalive request back into the loop.
type keepAliveResultMsg struct {
	gen  uint64
	resp *portal.KeepAliveResponse
	err  error
}
