// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package portal

// Credentials are submitted to the login endpoint. OTP is only required for
// accounts enrolled in a second factor.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

// User describes the authenticated analyst.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Department  string `json:"department"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token               string `json:"token"`
	User                User   `json:"user"`
	SessionID           string `json:"sessionId"`
	MaxInactiveInterval int    `json:"maxInactiveInterval"`
}

// KeepAliveResponse acknowledges a keepalive. MaxInactiveInterval is in
// seconds and is nil when the backend omits it.
type KeepAliveResponse struct {
	Extended            bool   `json:"extended"`
	MaxInactiveInterval *int   `json:"maxInactiveInterval,omitempty"`
	SessionID           string `json:"sessionId,omitempty"`
}

// StatusResponse reports the backend's view of the current session.
type StatusResponse struct {
	Active              bool `json:"active"`
	ExpiresInSeconds    int  `json:"expiresInSeconds"`
	MaxInactiveInterval int  `json:"maxInactiveInterval"`
}

// ErrorResponse is the JSON error body used by the backend.
type ErrorResponse struct {
	Error string `json:"error"`
}
