// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/portal-tui/internal/session"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{299, "4:59"},
		{300, "5:00"},
		{65, "1:05"},
		{5, "0:05"},
		{0, "0:00"},
		{-3, "0:00"},
		{1800, "30:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestSessionWarning_RenderHidden(t *testing.T) {
	w := NewSessionWarning()

	assert.Empty(t, w.Render(session.View{RemainingSeconds: 900, Running: true}, 80, 24))
}

func TestSessionWarning_RenderVisible(t *testing.T) {
	w := NewSessionWarning()
	view := session.View{RemainingSeconds: 299, WarningVisible: true, Running: true}

	out := w.Render(view, 80, 24)
	assert.Contains(t, out, "4:59")
	assert.Contains(t, out, "Session expiring")
	assert.Contains(t, out, "extend session")
}

func TestSessionWarning_ReflectsEachView(t *testing.T) {
	w := NewSessionWarning()

	first := w.Render(session.View{RemainingSeconds: 120, WarningVisible: true}, 80, 24)
	second := w.Render(session.View{RemainingSeconds: 119, WarningVisible: true}, 80, 24)
	assert.Contains(t, first, "2:00")
	assert.Contains(t, second, "1:59")
}

func TestSessionWarning_UpdateExtends(t *testing.T) {
	w := NewSessionWarning()
	visible := session.View{RemainingSeconds: 100, WarningVisible: true}

	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("e")},
		{Type: tea.KeyEnter},
	} {
		cmd := w.Update(k, visible)
		require.NotNil(t, cmd, k.String())
		assert.Equal(t, session.ExtendMsg{}, cmd())
	}
}

func TestSessionWarning_UpdateIgnored(t *testing.T) {
	w := NewSessionWarning()

	hidden := session.View{RemainingSeconds: 900}
	assert.Nil(t, w.Update(tea.KeyMsg{Type: tea.KeyEnter}, hidden))

	visible := session.View{RemainingSeconds: 100, WarningVisible: true}
	assert.Nil(t, w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, visible))
	assert.Nil(t, w.Update(tea.WindowSizeMsg{Width: 10}, visible))
}
