// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/session"
)

const namespace = "portal"

// =============================================================================
// CLIENT SESSION METRICS
// =============================================================================

// SessionMetrics holds the client-side session lifecycle metrics.
type SessionMetrics struct {
	Events           *prometheus.CounterVec
	KeepAlives       *prometheus.CounterVec
	Expiries         prometheus.Counter
	RemainingSeconds prometheus.Gauge
	TimeoutMinutes   prometheus.Gauge
	Running          prometheus.Gauge
}

// NewSessionMetrics creates and registers the session metrics with reg.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	return &SessionMetrics{
		Events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "events_total",
				Help:      "Session lifecycle events by kind",
			},
			[]string{"kind"},
		),
		KeepAlives: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "keepalives_total",
				Help:      "Keepalive outcomes",
			},
			[]string{"result"}, // result=sent/ok/failed/skipped/discarded
		),
		Expiries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "expiries_total",
				Help:      "Sessions ended by inactivity",
			},
		),
		RemainingSeconds: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "remaining_seconds",
				Help:      "Seconds until the session expires",
			},
		),
		TimeoutMinutes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "timeout_minutes",
				Help:      "Current inactivity timeout",
			},
		),
		Running: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "running",
				Help:      "1 while a session is active",
			},
		),
	}
}

// Record implements session.Recorder.
func (m *SessionMetrics) Record(e session.Event) {
	if e.Kind != session.EventCountdown {
		m.Events.WithLabelValues(string(e.Kind)).Inc()
	}
	m.RemainingSeconds.Set(float64(e.RemainingSeconds))
	m.TimeoutMinutes.Set(float64(e.TimeoutMinutes))

	switch e.Kind {
	case session.EventStarted:
		m.Running.Set(1)
	case session.EventStopped:
		m.Running.Set(0)
		m.RemainingSeconds.Set(0)
	case session.EventExpired:
		m.Expiries.Inc()
	case session.EventKeepAliveSent:
		m.KeepAlives.WithLabelValues("sent").Inc()
	case session.EventKeepAliveOK:
		m.KeepAlives.WithLabelValues("ok").Inc()
	case session.EventKeepAliveFailed:
		m.KeepAlives.WithLabelValues("failed").Inc()
	case session.EventKeepAliveSkipped:
		m.KeepAlives.WithLabelValues("skipped").Inc()
	case session.EventKeepAliveDiscarded:
		m.KeepAlives.WithLabelValues("discarded").Inc()
	}
}

// =============================================================================
// SERVER METRICS
// =============================================================================

// ServerMetrics holds the development backend metrics.
type ServerMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	LoginsTotal     *prometheus.CounterVec
}

// NewServerMetrics creates and registers the backend metrics with reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	return &ServerMetrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "active_sessions",
				Help:      "Number of live backend sessions",
			},
		),
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"}, // result=ok/denied/limited
		),
	}
}

// =============================================================================
// ENDPOINT
// =============================================================================

// Handler returns the /metrics handler for gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("metrics server shutdown")
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
