// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/portal-tui/internal/session"
)

// =============================================================================
// SCHEMA
// =============================================================================

const journalSchema = `
CREATE TABLE IF NOT EXISTS session_events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	at                INTEGER NOT NULL,
	kind              TEXT    NOT NULL,
	remaining_seconds INTEGER NOT NULL,
	timeout_minutes   INTEGER NOT NULL,
	detail            TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_session_events_at ON session_events(at);
`

// journalBuffer is how many events may wait for the writer before new
// ones are dropped.
const journalBuffer = 256

// =============================================================================
// JOURNAL
// =============================================================================

// Entry is a stored session event.
type Entry struct {
	ID               int64             `json:"id"`
	At               time.Time         `json:"at"`
	Kind             session.EventKind `json:"kind"`
	RemainingSeconds int               `json:"remainingSeconds"`
	TimeoutMinutes   int               `json:"timeoutMinutes"`
	Detail           string            `json:"detail,omitempty"`
}

// Journal records session lifecycle events in sqlite. Record never blocks;
// a single background goroutine performs the inserts.
type Journal struct {
	db      *sql.DB
	events  chan session.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	j := &Journal{
		db:     db,
		events: make(chan session.Event, journalBuffer),
		done:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// Record queues e for writing. Per-second countdown events are not stored.
func (j *Journal) Record(e session.Event) {
	if e.Kind == session.EventCountdown {
		return
	}
	select {
	case <-j.done:
		return
	default:
	}
	select {
	case j.events <- e:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for {
		select {
		case e := <-j.events:
			j.insert(e)
		case <-j.done:
			for {
				select {
				case e := <-j.events:
					j.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) insert(e session.Event) {
	_, err := j.db.Exec(
		`INSERT INTO session_events (at, kind, remaining_seconds, timeout_minutes, detail) VALUES (?, ?, ?, ?, ?)`,
		e.At.UnixMilli(), string(e.Kind), e.RemainingSeconds, e.TimeoutMinutes, e.Detail,
	)
	if err != nil {
		logrus.WithError(err).WithField("kind", e.Kind).Warn("journal insert failed")
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, kind, remaining_seconds, timeout_minutes, detail
		 FROM session_events ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at int64
		var kind string
		if err := rows.Scan(&e.ID, &at, &kind, &e.RemainingSeconds, &e.TimeoutMinutes, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Kind = session.EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM session_events WHERE at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes queued events, stops the writer and closes the database.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		close(j.done)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}
