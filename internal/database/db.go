// internal/database/db.go
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current schema version. Increment when adding
// migrations.
const schemaVersion = 1

// migrations maps version numbers to SQL bringing the schema from
// (version-1) to (version). Version 1 is the initial schema.
var migrations = map[int]string{
	1: `
	CREATE TABLE IF NOT EXISTS file_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		path       TEXT NOT NULL,
		event_type TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_file_events_path ON file_events(path);
	CREATE INDEX IF NOT EXISTS idx_file_events_created ON file_events(created_at);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		added      INTEGER NOT NULL,
		removed    INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`,
}

// Database is the sqlite-backed audit log: file events observed by the
// watcher with their classification, and git sync runs.
type Database struct {
	db *sql.DB
}

// Open creates or opens the audit database at the given path.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Database) migrate() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	row := d.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&current); err != nil {
		if err != sql.ErrNoRows {
			return err
		}
		if _, err := d.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return err
		}
	}

	for v := current + 1; v <= schemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("missing migration for schema version %d", v)
		}
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := d.db.Exec(`UPDATE schema_version SET version = ?`, v); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// RecordFileEvent appends one observed file event with its
// classification.
func (d *Database) RecordFileEvent(path, eventType, source string, confidence float64) error {
	_, err := d.db.Exec(
		`INSERT INTO file_events (path, event_type, source, confidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		path, eventType, source, confidence, time.Now().UnixMilli(),
	)
	return err
}

// RecordSyncRun appends one git reconciliation outcome.
func (d *Database) RecordSyncRun(added, removed int) error {
	_, err := d.db.Exec(
		`INSERT INTO sync_runs (added, removed, created_at) VALUES (?, ?, ?)`,
		added, removed, time.Now().UnixMilli(),
	)
	return err
}

// FileEvent is one audit log row.
type FileEvent struct {
	ID         int64   `json:"id"`
	Path       string  `json:"path"`
	EventType  string  `json:"eventType"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	CreatedAt  int64   `json:"createdAt"`
}

// RecentFileEvents returns the newest events, newest first.
func (d *Database) RecentFileEvents(limit int) ([]FileEvent, error) {
	rows, err := d.db.Query(
		`SELECT id, path, event_type, source, confidence, created_at
		 FROM file_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []FileEvent
	for rows.Next() {
		var e FileEvent
		if err := rows.Scan(&e.ID, &e.Path, &e.EventType, &e.Source, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// EventCountsBySource returns how many audited events each source
// produced.
func (d *Database) EventCountsBySource() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT source, COUNT(*) FROM file_events GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		counts[source] = count
	}

	return counts, rows.Err()
}
