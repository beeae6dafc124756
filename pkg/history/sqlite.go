package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
)

// SQLiteStorage implements Storage using SQLite. It stores the full record
// as a JSON blob alongside indexed columns for the query dimensions, and
// uses WAL mode for better concurrency with the query commands.
type SQLiteStorage struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS policy_snapshots (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	level     TEXT NOT NULL,
	record    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON policy_snapshots(timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_level ON policy_snapshots(level);

CREATE TABLE IF NOT EXISTS escalation_transitions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id  TEXT NOT NULL,
	check_name TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_record ON escalation_transitions(record_id);
CREATE INDEX IF NOT EXISTS idx_transitions_check ON escalation_transitions(check_name);
CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON escalation_transitions(timestamp);
`

// NewSQLiteStorage opens (creating if needed) the history database at path.
func NewSQLiteStorage(path string, busyTimeout time.Duration) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %q: %w", path, err)
	}

	// Single-writer tick model: one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// RecordSnapshot stores one policy snapshot.
func (s *SQLiteStorage) RecordSnapshot(ctx context.Context, snap policy.Snapshot) error {
	record, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO policy_snapshots (timestamp, level, record) VALUES (?, ?, ?)`,
		snap.Timestamp.UTC().Format(time.RFC3339Nano), string(snap.Level), record)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// RecordTransition stores one escalation transition.
func (s *SQLiteStorage) RecordTransition(ctx context.Context, entry escalation.TransitionEntry) error {
	record, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode transition: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalation_transitions (record_id, check_name, timestamp, record) VALUES (?, ?, ?, ?)`,
		entry.RecordID, entry.Check, entry.Timestamp.UTC().Format(time.RFC3339Nano), record)
	if err != nil {
		return fmt.Errorf("failed to store transition: %w", err)
	}
	return nil
}

// QuerySnapshots returns snapshots matching the query, newest first.
func (s *SQLiteStorage) QuerySnapshots(ctx context.Context, q SnapshotQuery) ([]policy.Snapshot, error) {
	query := `SELECT record FROM policy_snapshots WHERE 1=1`
	var args []any

	if !q.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if !q.Until.IsZero() {
		query += ` AND timestamp < ?`
		args = append(args, q.Until.UTC().Format(time.RFC3339Nano))
	}
	if q.Level != "" {
		query += ` AND level = ?`
		args = append(args, string(q.Level))
	}
	query += ` ORDER BY timestamp DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []policy.Snapshot
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap policy.Snapshot
		if err := json.Unmarshal([]byte(record), &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// QueryTransitions returns transitions matching the query, newest first.
func (s *SQLiteStorage) QueryTransitions(ctx context.Context, q TransitionQuery) ([]escalation.TransitionEntry, error) {
	query := `SELECT record FROM escalation_transitions WHERE 1=1`
	var args []any

	if !q.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if q.Check != "" {
		query += ` AND check_name = ?`
		args = append(args, q.Check)
	}
	if q.RecordID != "" {
		query += ` AND record_id = ?`
		args = append(args, q.RecordID)
	}
	query += ` ORDER BY timestamp DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []escalation.TransitionEntry
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		var entry escalation.TransitionEntry
		if err := json.Unmarshal([]byte(record), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode transition: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error { return s.db.Close() }
