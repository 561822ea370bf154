// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultTimeoutMinutes applies until the backend reports its own interval.
	DefaultTimeoutMinutes = 30

	// WarningThreshold is how long before expiry the warning is shown.
	WarningThreshold = 5 * time.Minute

	// CountdownInterval is the countdown tick period.
	CountdownInterval = time.Second

	// KeepAliveInterval is the keepalive tick period.
	KeepAliveInterval = 5 * time.Minute

	// KeepAliveRecency is how recent activity must be for a keepalive to go out.
	KeepAliveRecency = 5 * time.Minute

	// ActivityDebounce is the minimum gap between recorded activity updates.
	ActivityDebounce = 10 * time.Second
)

// Config holds the session timing parameters.
type Config struct {
	TimeoutMinutes    int
	WarningThreshold  time.Duration
	CountdownInterval time.Duration
	KeepAliveInterval time.Duration
	KeepAliveRecency  time.Duration
	ActivityDebounce  time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		TimeoutMinutes:    DefaultTimeoutMinutes,
		WarningThreshold:  WarningThreshold,
		CountdownInterval: CountdownInterval,
		KeepAliveInterval: KeepAliveInterval,
		KeepAliveRecency:  KeepAliveRecency,
		ActivityDebounce:  ActivityDebounce,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TimeoutMinutes <= 0 {
		c.TimeoutMinutes = d.TimeoutMinutes
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = d.WarningThreshold
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = d.CountdownInterval
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = d.KeepAliveInterval
	}
	if c.KeepAliveRecency <= 0 {
		c.KeepAliveRecency = d.KeepAliveRecency
	}
	if c.ActivityDebounce <= 0 {
		c.ActivityDebounce = d.ActivityDebounce
	}
	return c
}

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the shared session state. Only the Controller holds one.
type State struct {
	TimeoutMinutes   int
	LastActivity     time.Time
	RemainingSeconds int
	WarningVisible   bool
	Running          bool
}

// View is the read-only projection handed to presenters.
type View struct {
	RemainingSeconds int
	WarningVisible   bool
	TimeoutMinutes   int
	Running          bool
	LastActivity     time.Time
}

// recompute refreshes the derived fields for now.
func (s *State) recompute(now time.Time, threshold time.Duration) {
	s.RemainingSeconds = RemainingSeconds(s.TimeoutMinutes, s.LastActivity, now)
	s.WarningVisible = WarningVisible(s.RemainingSeconds, threshold)
}

// RemainingSeconds returns max(0, timeoutMinutes*60 - whole seconds since last).
// A last timestamp in the future counts as zero elapsed.
func RemainingSeconds(timeoutMinutes int, last, now time.Time) int {
	elapsed := int(now.Sub(last) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := timeoutMinutes*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WarningVisible reports whether remaining falls inside (0, threshold].
func WarningVisible(remaining int, threshold time.Duration) bool {
	return remaining > 0 && remaining <= int(threshold/time.Second)
}
