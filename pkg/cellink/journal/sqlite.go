package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteStore persists entries to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) a journal database at path.
// Use ":memory:" for a throwaway journal.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS node_outcomes (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			node TEXT NOT NULL,
			layer INTEGER NOT NULL,
			status TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL,
			duration_ms REAL NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (run_id, node_id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO node_outcomes
			(run_id, node_id, node, layer, status, success, error, duration_ms, sequence, timestamp)
		VALUES (
			?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(sequence) FROM node_outcomes WHERE run_id = ?), 0) + 1,
			?
		)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			node = excluded.node,
			layer = excluded.layer,
			status = excluded.status,
			success = excluded.success,
			error = excluded.error,
			duration_ms = excluded.duration_ms,
			sequence = excluded.sequence,
			timestamp = excluded.timestamp
	`, e.RunID, e.NodeID, e.Node, e.Layer, e.Status, e.Success, e.Error, e.DurationMs,
		e.RunID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(runID, nodeID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT node, layer, status, success, error, duration_ms, sequence, timestamp
		FROM node_outcomes
		WHERE run_id = ? AND node_id = ?
	`, runID, nodeID)

	e := Entry{RunID: runID, NodeID: nodeID}
	err := scanEntry(row, &e)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT node_id, node, layer, status, success, error, duration_ms, sequence, timestamp
		FROM node_outcomes
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{RunID: runID}
		var timestamp string
		if err := rows.Scan(&e.NodeID, &e.Node, &e.Layer, &e.Status, &e.Success,
			&e.Error, &e.DurationMs, &e.Sequence, &timestamp); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM node_outcomes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanEntry(row *sql.Row, e *Entry) error {
	var timestamp string
	if err := row.Scan(&e.Node, &e.Layer, &e.Status, &e.Success, &e.Error,
		&e.DurationMs, &e.Sequence, &timestamp); err != nil {
		return err
	}
	e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	return nil
}
