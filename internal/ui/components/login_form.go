// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// Login form field indexes.
const (
	fieldUsername = iota
	fieldPassword
	fieldOTP
	fieldCount
)

// LoginSubmitMsg is produced when the form is submitted with a username and
// password.
type LoginSubmitMsg struct {
	Username string
	Password string
	OTP      string
}

// LoginKeyMap holds the form's bindings.
type LoginKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
}

// DefaultLoginKeyMap returns the default form bindings.
func DefaultLoginKeyMap() LoginKeyMap {
	return LoginKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "sign in"),
		),
	}
}

// LoginForm is the username, password and one-time code form.
type LoginForm struct {
	inputs  [fieldCount]textinput.Model
	focus   int
	keys    LoginKeyMap
	theme   *styles.Theme
	err     string
	notice  string
	pending bool
	width   int
}

// NewLoginForm creates a form with the username field focused.
func NewLoginForm(theme *styles.Theme) *LoginForm {
	f := &LoginForm{keys: DefaultLoginKeyMap(), theme: theme, width: 40}

	labels := [fieldCount]string{"username", "password", "one-time code (optional)"}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = labels[i]
		ti.CharLimit = 128
		ti.Width = 32
		ti.Prompt = "> "
		ti.PromptStyle = theme.InputBlurred
		ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
		f.inputs[i] = ti
	}
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '*'
	f.inputs[fieldOTP].CharLimit = 8

	f.setFocus(fieldUsername)
	return f
}

// Init starts the cursor blink.
func (f *LoginForm) Init() tea.Cmd {
	return textinput.Blink
}

// Reset clears every field and message and focuses the username.
func (f *LoginForm) Reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.err = ""
	f.notice = ""
	f.pending = false
	f.setFocus(fieldUsername)
}

// SetError shows an error under the form and re-enables submission.
func (f *LoginForm) SetError(msg string) {
	f.err = msg
	f.pending = false
	f.inputs[fieldPassword].Reset()
	f.inputs[fieldOTP].Reset()
	f.setFocus(fieldPassword)
}

// SetNotice shows an informational line above the form.
func (f *LoginForm) SetNotice(msg string) {
	f.notice = msg
}

// SetTheme restyles the form without clearing it.
func (f *LoginForm) SetTheme(theme *styles.Theme) {
	f.theme = theme
	f.setFocus(f.focus)
}

// SetWidth sets the available width.
func (f *LoginForm) SetWidth(width int) {
	f.width = width
}

// Pending reports whether a submission is in flight.
func (f *LoginForm) Pending() bool {
	return f.pending
}

// Focused returns the index of the focused field.
func (f *LoginForm) Focused() int {
	return f.focus
}

// Update handles navigation and submission.
func (f *LoginForm) Update(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, f.keys.Next):
			f.setFocus((f.focus + 1) % fieldCount)
			return nil
		case key.Matches(k, f.keys.Prev):
			f.setFocus((f.focus + fieldCount - 1) % fieldCount)
			return nil
		case key.Matches(k, f.keys.Submit):
			return f.submit()
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *LoginForm) submit() tea.Cmd {
	if f.pending {
		return nil
	}
	username := strings.TrimSpace(f.inputs[fieldUsername].Value())
	password := f.inputs[fieldPassword].Value()
	if username == "" {
		f.err = "Enter your username"
		f.setFocus(fieldUsername)
		return nil
	}
	if password == "" {
		f.err = "Enter your password"
		f.setFocus(fieldPassword)
		return nil
	}

	f.err = ""
	f.pending = true
	submit := LoginSubmitMsg{
		Username: username,
		Password: password,
		OTP:      strings.TrimSpace(f.inputs[fieldOTP].Value()),
	}
	return func() tea.Msg { return submit }
}

func (f *LoginForm) setFocus(i int) {
	f.focus = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
			f.inputs[j].PromptStyle = f.theme.InputFocused
		} else {
			f.inputs[j].Blur()
			f.inputs[j].PromptStyle = f.theme.InputBlurred
		}
	}
}

// View renders the form.
func (f *LoginForm) View() string {
	var parts []string

	parts = append(parts, f.theme.PanelTitle.Render("Sign in to the Research Portal"))
	if f.notice != "" {
		parts = append(parts, f.theme.Notice.Render(f.notice), "")
	}

	labels := [fieldCount]string{"Username", "Password", "One-time code"}
	for i, in := range f.inputs {
		parts = append(parts, f.theme.InputLabel.Render(labels[i]), in.View(), "")
	}

	switch {
	case f.pending:
		parts = append(parts, f.theme.Hint.Render("Signing in..."))
	case f.err != "":
		parts = append(parts, f.theme.ErrorText.Render(styles.StatusIndicators.Error+" "+f.err))
	default:
		parts = append(parts, f.theme.Hint.Render("tab: next field  enter: sign in  ctrl+c: quit"))
	}

	boxWidth := f.width - 4
	if boxWidth > 56 {
		boxWidth = 56
	}
	if boxWidth < 30 {
		boxWidth = 30
	}
	return f.theme.FormBox.Width(boxWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
