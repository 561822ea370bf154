// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/portal-tui/internal/auth"
	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// AuthChangedMsg carries a gateway state change into the event loop. Send
// it from an auth.Gateway subscription.
type AuthChangedMsg struct {
	State auth.State
}

// ConfigReloadedMsg carries a config file change into the event loop.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

type loginResultMsg struct {
	err error
}

type logoutResultMsg struct {
	err error
}

type statusResultMsg struct {
	status *portal.StatusResponse
	err    error
}
