// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import "github.com/charmbracelet/glamour"

// HelpMarkdown is the text of the portal help panel.
const HelpMarkdown = `# Session

Your session ends after a period of **inactivity**. Any key press or mouse
action counts as activity.

- A warning appears five minutes before the session ends.
- Press **e** or **enter** while the warning is shown to extend the session.
- While you are active, the portal keeps the server session alive.
- When the session ends you are signed out and returned to the login screen.

# Keys

| Key | Action |
|-----|--------|
| ` + "`?`" + ` | toggle this help |
| ` + "`ctrl+l`" + ` | sign out |
| ` + "`q`" + ` / ` + "`ctrl+c`" + ` | quit |
`

// HelpPanel renders HelpMarkdown with glamour, caching the result per width.
type HelpPanel struct {
	dark     bool
	width    int
	rendered string
}

// NewHelpPanel creates a help panel for a dark or light background.
func NewHelpPanel(dark bool) *HelpPanel {
	return &HelpPanel{dark: dark}
}

// View renders the help text wrapped to width. Rendering failures fall
// back to the raw markdown.
func (h *HelpPanel) View(width int) string {
	if width < 20 {
		width = 20
	}
	if h.rendered != "" && h.width == width {
		return h.rendered
	}

	style := "light"
	if h.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return HelpMarkdown
	}
	out, err := r.Render(HelpMarkdown)
	if err != nil {
		return HelpMarkdown
	}

	h.width = width
	h.rendered = out
	return out
}
