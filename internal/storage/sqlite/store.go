// Package sqlite provides a SQLite-backed match history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"arcadehub/internal/apperr"
	"arcadehub/internal/protocol"
	"arcadehub/internal/storage/sqlite/migrations"
	"arcadehub/pkg/types"
)

// Store persists end-of-match reports.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies
// migrations. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != dsn {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps ":memory:" a single database and serialises writers
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one report. Recording the same match twice is a conflict.
func (s *Store) Record(ctx context.Context, r protocol.MatchReport) error {
	if strings.TrimSpace(r.MatchID) == "" {
		return apperr.InvalidArgument("match id is required")
	}
	users, err := json.Marshal(r.Users)
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO match_reports (
		   match_id, room_id, game_id, users_json, mode, reason, winner, start_at, end_at, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.RoomID, r.GameID, string(users), string(r.Mode), r.Reason, r.Winner,
		r.StartAt, r.EndAt, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraint(err) {
			return apperr.Conflict("match " + r.MatchID + " already recorded")
		}
		return fmt.Errorf("insert report: %w", err)
	}
	for seat, res := range r.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO match_results (match_id, seat, user_id, score, lines, connected) VALUES (?, ?, ?, ?, ?, ?)`,
			r.MatchID, seat, res.UserID, res.Score, res.Lines, res.Connected,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit reports, most recently ended first.
func (s *Store) Recent(ctx context.Context, limit int) ([]protocol.MatchReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id, room_id, game_id, users_json, mode, reason, winner, start_at, end_at
		   FROM match_reports
		  ORDER BY end_at DESC, match_id DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	var out []protocol.MatchReport
	for rows.Next() {
		var (
			r     protocol.MatchReport
			users string
			mode  string
		)
		if err := rows.Scan(&r.MatchID, &r.RoomID, &r.GameID, &users, &mode, &r.Reason, &r.Winner, &r.StartAt, &r.EndAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Mode = types.Mode(mode)
		if err := json.Unmarshal([]byte(users), &r.Users); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode users: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		res, err := s.results(ctx, out[i].MatchID)
		if err != nil {
			return nil, err
		}
		out[i].Results = res
	}
	return out, nil
}

func (s *Store) results(ctx context.Context, matchID string) ([]protocol.PlayerResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, score, lines, connected FROM match_results WHERE match_id = ? ORDER BY seat`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	var out []protocol.PlayerResult
	for rows.Next() {
		var r protocol.PlayerResult
		if err := rows.Scan(&r.UserID, &r.Score, &r.Lines, &r.Connected); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
