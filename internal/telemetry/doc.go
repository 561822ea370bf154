// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes Prometheus metrics for the session lifecycle
// and the development backend.
//
// SessionMetrics implements session.Recorder, so it can be passed straight
// to the controller alongside the journal:
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewSessionMetrics(reg)
//	ctrl := session.NewController(timing, client, gw,
//	    session.WithRecorder(session.Recorders(m, journal)))
//	go telemetry.Serve(ctx, ":9090", reg)
package telemetry
