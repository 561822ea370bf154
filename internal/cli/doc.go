// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the portal command line.
//
// Commands:
//
//	portal                 Run the terminal client
//	portal serve           Run the development backend
//	portal status          Sign in and print the server's session status
//	portal keepalive       Sign in and extend the session once
//	portal journal         Show recent session lifecycle events
//	portal config init     Write a default config file
//	portal config show     Print the effective configuration
//	portal config hash     Hash a password for a [[server.users]] entry
//	portal version         Print version information
//
// Human-readable output goes to stdout. With --json, commands print a
// single JSONResponse instead and messages go to stderr.
package cli
