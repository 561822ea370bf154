// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the portal TUI.

# Color System (colors.go)

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

  - Cyan - Brand color, header and focused inputs
  - Emerald - Healthy session, success states
  - Amber - Session warnings
  - Rose - Errors and expired sessions

Status messages carry ASCII shape indicators ([OK], [X], [!], [i]) so they
remain readable without color.

# Theme System (theme.go)

A Theme bundles the styles used by the header, body panels, status bar and
login form. NewTheme accepts the configured theme name:

	auto  - detect the terminal background with termenv
	dark  - force the dark palette
	light - force the light palette

Usage:

	theme := styles.NewTheme(cfg.UI.Theme)
	header := theme.Header.Width(width).Render("Research Portal")
*/
package styles
