// Package audit keeps a history of mutating runs in a local SQLite
// database. Appending is best-effort: a broken history must never
// fail the command it records.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded mutating command.
type Run struct {
	ID         int64
	Timestamp  string
	Command    string // "update", "convert", "restore", ...
	Entity     string
	Expression string // key-form of the transform, when any
	Filter     string // key-form of the filter gate, when any
	Updated    int
	Skipped    int
	Failed     int
	DryRun     bool
}

// Log is an open history database.
type Log struct {
	db *sql.DB
}

const createHistory = `
CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  TEXT NOT NULL,
	command    TEXT NOT NULL,
	entity     TEXT NOT NULL DEFAULT '',
	expression TEXT NOT NULL DEFAULT '',
	filter     TEXT NOT NULL DEFAULT '',
	updated    INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	dry_run    INTEGER NOT NULL DEFAULT 0
)`

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(createHistory); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history db: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append records one run.
func (l *Log) Append(run Run) error {
	if run.Timestamp == "" {
		run.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := l.db.Exec(
		`INSERT INTO history (timestamp, command, entity, expression, filter, updated, skipped, failed, dry_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Timestamp, run.Command, run.Entity, run.Expression, run.Filter,
		run.Updated, run.Skipped, run.Failed, boolToInt(run.DryRun),
	)
	return err
}

// Recent returns the latest runs, newest first.
func (l *Log) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT id, timestamp, command, entity, expression, filter, updated, skipped, failed, dry_run
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dryRun int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Command, &r.Entity, &r.Expression, &r.Filter,
			&r.Updated, &r.Skipped, &r.Failed, &dryRun); err != nil {
			return nil, err
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run by id.
func (l *Log) Get(id int64) (Run, error) {
	var r Run
	var dryRun int
	err := l.db.QueryRow(
		`SELECT id, timestamp, command, entity, expression, filter, updated, skipped, failed, dry_run
		 FROM history WHERE id = ?`, id).
		Scan(&r.ID, &r.Timestamp, &r.Command, &r.Entity, &r.Expression, &r.Filter,
			&r.Updated, &r.Skipped, &r.Failed, &dryRun)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("no history entry %d", id)
	}
	if err != nil {
		return Run{}, err
	}
	r.DryRun = dryRun != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
