// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db %s: %w", path, err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// Record stores a single event.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	event = prepare(event)
	errs, err := encodeErrors(event.Errors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_audit_events (
			id, tool, format, valid, errors_json, source, digest, duration_us, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Tool,
		event.Format,
		event.Valid,
		errs,
		event.Source,
		event.Digest,
		event.Duration.Microseconds(),
		event.RecordedAt,
	)
	return err
}

// List returns matching events oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, tool, format, valid, errors_json, source, digest, duration_us, recorded_at
		FROM tool_audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Tool != "" {
		addFilter("tool = ?", filter.Tool)
	}
	if filter.Valid != nil {
		addFilter("valid = ?", *filter.Valid)
	}
	if !filter.Since.IsZero() {
		addFilter("recorded_at >= ?", filter.Since.UTC())
	}
	query += where + " ORDER BY recorded_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			errsJSON string
			micros   int64
			recorded sql.NullTime
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.Tool,
			&ev.Format,
			&ev.Valid,
			&errsJSON,
			&ev.Source,
			&ev.Digest,
			&micros,
			&recorded,
		); err != nil {
			return nil, err
		}
		ev.Errors = decodeErrors(errsJSON)
		ev.Duration = time.Duration(micros) * time.Microsecond
		if recorded.Valid {
			ev.RecordedAt = recorded.Time.UTC()
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_audit_events (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			format TEXT NOT NULL,
			valid BOOLEAN NOT NULL,
			errors_json TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			digest TEXT NOT NULL DEFAULT '',
			duration_us INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_audit_tool ON tool_audit_events(tool);
		CREATE INDEX IF NOT EXISTS idx_tool_audit_recorded ON tool_audit_events(recorded_at);
	`)
	return err
}
