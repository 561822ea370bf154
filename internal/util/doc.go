// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the portal packages.
//
//	s := util.IntToString(42)
//	err := util.WriteFileAtomic(path, data, 0600, 0700)
package util
