// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the UI components for the portal TUI.

# Components

RenderHeader (header.go) - Title bar with the signed-in user.
LoginForm (login_form.go) - Username, password and one-time code form.
SessionWarning (session_warning.go) - Inactivity warning overlay.
StatusBar (statusbar.go) - Remaining session time with a progress bar.
HelpPanel (help.go) - Markdown help rendered with glamour.

SessionWarning is a pure projection of session.View: it is handed the
current view on every call and never caches the remaining time.
*/
package components
