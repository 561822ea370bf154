// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/portal-tui/internal/clock"
)

// =============================================================================
// ACTIVITY KINDS
// =============================================================================

// ActivityKind classifies a user interaction.
type ActivityKind int

const (
	PointerMove ActivityKind = iota
	KeyPress
	PointerClick
	Touch
)

// String returns the kind name.
func (k ActivityKind) String() string {
	switch k {
	case PointerMove:
		return "pointer_move"
	case KeyPress:
		return "key_press"
	case PointerClick:
		return "pointer_click"
	case Touch:
		return "touch"
	default:
		return "unknown"
	}
}

// ActivityKindOf maps a terminal input message to an activity kind.
func ActivityKindOf(msg tea.Msg) (ActivityKind, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return KeyPress, true
	case tea.MouseMsg:
		if msg.Type == tea.MouseMotion {
			return PointerMove, true
		}
		return PointerClick, true
	}
	return 0, false
}

// =============================================================================
// ACTIVITY SOURCE
// =============================================================================

// ActivitySource delivers interaction events to subscribers.
type ActivitySource interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func(ActivityKind)) (unsubscribe func())
}

// Listeners is an ActivitySource fed by explicit Emit calls.
type Listeners struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(ActivityKind)
}

// NewListeners creates an empty listener set.
func NewListeners() *Listeners {
	return &Listeners{handlers: make(map[int]func(ActivityKind))}
}

// Subscribe registers fn.
func (l *Listeners) Subscribe(fn func(ActivityKind)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	l.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.handlers, id)
			l.mu.Unlock()
		})
	}
}

// Emit delivers kind to every subscriber.
func (l *Listeners) Emit(kind ActivityKind) {
	l.mu.Lock()
	fns := make([]func(ActivityKind), 0, len(l.handlers))
	for _, fn := range l.handlers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// Len returns the number of subscribers.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

// =============================================================================
// ACTIVITY TRACKER
// =============================================================================

// ActivityTracker turns raw interaction events into a debounced
// LastActivity timestamp.
type ActivityTracker struct {
	state    *State
	clock    clock.Clock
	debounce time.Duration

	// onRecord runs after LastActivity moves.
	onRecord func(kind ActivityKind, now time.Time)

	unsubscribe func()
}

func newActivityTracker(state *State, clk clock.Clock, debounce time.Duration, onRecord func(ActivityKind, time.Time)) *ActivityTracker {
	return &ActivityTracker{
		state:    state,
		clock:    clk,
		debounce: debounce,
		onRecord: onRecord,
	}
}

// Attach subscribes to src. Attaching twice keeps the first subscription.
func (t *ActivityTracker) Attach(src ActivitySource) {
	if t.unsubscribe != nil || src == nil {
		return
	}
	t.unsubscribe = src.Subscribe(func(kind ActivityKind) {
		now := t.clock.Now()
		if t.Record(now) && t.onRecord != nil {
			t.onRecord(kind, now)
		}
	})
}

// Detach removes the subscription.
func (t *ActivityTracker) Detach() {
	if t.unsubscribe == nil {
		return
	}
	t.unsubscribe()
	t.unsubscribe = nil
}

// Attached reports whether the tracker holds a subscription.
func (t *ActivityTracker) Attached() bool {
	return t.unsubscribe != nil
}

// Record moves LastActivity to now when more than the debounce window has
// passed since the previous update. It reports whether it did. Activity
// after the timeout budget is spent does not revive the session; the next
// countdown tick expires it.
func (t *ActivityTracker) Record(now time.Time) bool {
	if !t.state.Running {
		return false
	}
	elapsed := now.Sub(t.state.LastActivity)
	if t.state.TimeoutMinutes > 0 && elapsed >= time.Duration(t.state.TimeoutMinutes)*time.Minute {
		return false
	}
	if elapsed <= t.debounce {
		return false
	}
	t.state.LastActivity = now
	return true
}
