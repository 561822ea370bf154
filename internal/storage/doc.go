// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists session lifecycle events.
//
// The Journal is a session.Recorder backed by sqlite (modernc.org/sqlite,
// no cgo). Events are queued from the UI event loop and written by a
// single goroutine so recording never blocks the loop.
//
// # Usage
//
//	j, err := storage.OpenJournal(cfg.Journal.Path)
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	ctrl := session.NewController(timing, client, gateway, session.WithRecorder(j))
package storage
