// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps an authenticated portal session alive while the
// user is active and logs them out after a period of inactivity.
//
// # Key Types
//
//   - Controller: owns the session state and both schedulers
//   - ActivityTracker: debounced "last active" timestamp
//   - Listeners: activity source fed by the terminal event loop
//   - View: read-only projection for the warning presenter
//
// # Event Loop
//
// All state lives on the Bubble Tea event loop. Timers run on their own
// goroutines but only send messages back into the loop, and keepalive
// requests run as tea.Cmd values. The controller is therefore not safe for
// use from other goroutines; route everything through Update.
//
// # Usage
//
//	ctrl := session.NewController(session.DefaultConfig(), client, gateway,
//	    session.WithActivitySource(listeners))
//	p := tea.NewProgram(model)
//	ctrl.SetSender(p.Send)
//
// Forward session.LoginStateMsg when the gateway reports a login or logout,
// and hand every other message to ctrl.Update.
package session
