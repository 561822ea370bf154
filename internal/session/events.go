// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// EventKind names a lifecycle event.
type EventKind string

const (
	EventStarted            EventKind = "started"
	EventStopped            EventKind = "stopped"
	EventActivity           EventKind = "activity"
	EventCountdown          EventKind = "countdown"
	EventWarning            EventKind = "warning"
	EventExtended           EventKind = "extended"
	EventKeepAliveSent      EventKind = "keepalive_sent"
	EventKeepAliveOK        EventKind = "keepalive_ok"
	EventKeepAliveFailed    EventKind = "keepalive_failed"
	EventKeepAliveSkipped   EventKind = "keepalive_skipped"
	EventKeepAliveDiscarded EventKind = "keepalive_discarded"
	EventTimeoutChanged     EventKind = "timeout_changed"
	EventExpired            EventKind = "expired"
)

// Event is a point-in-time record of a lifecycle transition.
type Event struct {
	Kind             EventKind
	At               time.Time
	RemainingSeconds int
	TimeoutMinutes   int
	Detail           string
}

// Recorder observes lifecycle events. Record is called on the event loop
// and must not block.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

// Record calls f(e).
func (f RecorderFunc) Record(e Event) { f(e) }

type multiRecorder []Recorder

func (m multiRecorder) Record(e Event) {
	for _, r := range m {
		r.Record(e)
	}
}

// Recorders fans events out to every non-nil recorder.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
