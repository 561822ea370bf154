// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the development portal backend.
//
// Endpoints:
//   - POST /api/auth/login        - Authenticate and open a session
//   - POST /api/auth/logout       - Invalidate the caller's session
//   - POST /api/session/keepalive - Extend the caller's session
//   - GET  /api/session/status    - Report the caller's session state
//   - GET  /metrics               - Prometheus metrics
//   - GET  /healthz               - Health check
//
// Sessions live in memory and expire after a fixed period of inactivity.
// Tokens are HS256 JWTs carrying the session ID in the "sid" claim.
package server
