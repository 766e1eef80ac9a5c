// Package catalog is the embedded SQLite record of every indexed file,
// coalesced event, and gap-fix queue entry. Schema and migration follow
// the teacher's db.go (sync/db.go): schema_version row in a meta table,
// WAL mode, idempotent CREATE TABLE IF NOT EXISTS.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS roots (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    last_indexed_at INTEGER
);

CREATE TABLE IF NOT EXISTS files (
    root_id       INTEGER NOT NULL REFERENCES roots(id),
    relative_path TEXT NOT NULL,
    collector     TEXT NOT NULL,
    era           TEXT NOT NULL,
    exchange      TEXT,
    symbol        TEXT,
    start_ts      INTEGER,
    ext           TEXT,
    created_at    INTEGER NOT NULL,
    processed_at  INTEGER,
    failed        INTEGER NOT NULL DEFAULT 0,
    failed_reason TEXT,
    PRIMARY KEY (root_id, relative_path)
);
CREATE INDEX IF NOT EXISTS idx_files_exchange_symbol ON files(exchange, symbol);
CREATE INDEX IF NOT EXISTS idx_files_start_ts ON files(start_ts);
CREATE INDEX IF NOT EXISTS idx_files_collector ON files(collector);

CREATE TABLE IF NOT EXISTS file_conflicts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    root_id         INTEGER NOT NULL,
    relative_path   TEXT NOT NULL,
    observed_collector TEXT,
    observed_era       TEXT,
    observed_exchange  TEXT,
    observed_symbol    TEXT,
    observed_start_ts  INTEGER,
    observed_ext       TEXT,
    detected_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    root_id         INTEGER NOT NULL,
    relative_path   TEXT NOT NULL,
    collector       TEXT NOT NULL,
    exchange        TEXT,
    symbol          TEXT,
    type            TEXT NOT NULL,
    start_line      INTEGER NOT NULL,
    end_line        INTEGER NOT NULL,
    ts              INTEGER,
    gap_ms          INTEGER,
    gap_miss        INTEGER,
    gap_end_ts      INTEGER,
    gap_fix_status  TEXT,
    gap_fix_attempts INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (root_id, relative_path) REFERENCES files(root_id, relative_path)
);
CREATE INDEX IF NOT EXISTS idx_events_symbol_start_ts ON events(symbol, ts);
CREATE INDEX IF NOT EXISTS idx_events_fix_status ON events(gap_fix_status);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// DB wraps an open catalog database handle.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("catalog: set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("catalog: enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("catalog: set busy timeout: %w", err)
	}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}

	return &DB{sql: sqlDB}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.sql.Close()
}

func migrate(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		if _, execErr := db.Exec(schema); execErr != nil {
			return fmt.Errorf("create schema: %w", execErr)
		}
		_, execErr := db.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
		if execErr != nil {
			return fmt.Errorf("set schema version: %w", execErr)
		}
		return nil
	}
	return nil
}
