package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	tgerrors "github.com/randalmurphal/tickgraph/pkg/tickgraph/errors"
)

// SQLiteStore persists the journal to SQLite.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a journal database.
// The path should be a file path (e.g., "./journal.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS firings (
			run_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			event TEXT NOT NULL,
			timer TEXT NOT NULL,
			scheduled REAL NOT NULL,
			fired_at REAL NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, sequence)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_firings_event
		ON firings(run_id, event)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var seq int64
	err := s.db.QueryRow(`
		INSERT INTO firings (run_id, sequence, event, timer, scheduled, fired_at, outcome, error, recorded_at)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM firings WHERE run_id = ?), 0) + 1,
			?, ?, ?, ?, ?, ?, ?
		)
		RETURNING sequence
	`, rec.RunID, rec.RunID, rec.Event, rec.Timer, rec.Scheduled, rec.FiredAt,
		string(rec.Outcome), rec.Error, time.Now().UTC().Format(time.RFC3339Nano)).Scan(&seq)
	if err != nil {
		return 0, classify(err, "append firing")
	}
	return seq, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT sequence, event, timer, scheduled, fired_at, outcome, error, recorded_at
		FROM firings
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list firings: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := Record{RunID: runID}
		var outcome, recordedAt string
		if err := rows.Scan(&rec.Sequence, &rec.Event, &rec.Timer, &rec.Scheduled,
			&rec.FiredAt, &outcome, &rec.Error, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return records, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM firings WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count firings: %w", err)
	}
	return n, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM firings WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run firings: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// classify marks busy and locked database errors as transient so callers
// can retry them.
func classify(err error, op string) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return tgerrors.Transient(err, op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
