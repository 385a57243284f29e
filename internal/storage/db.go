// Package storage persists history, bookmarks, certificate pins, the tab
// session and user configuration.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFile is the database file created in the data directory.
const DBFile = "gsurf.db"

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// OpenDB opens (or creates) the gsurf SQLite database in the given data directory.
func OpenDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)

	// Pragmas in the DSN apply to every pooled connection.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB for direct queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// migrations are applied in order; PRAGMA user_version records how many
// have run. Times are unix milliseconds.
var migrations = []string{
	`CREATE TABLE bookmarks (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		url        TEXT    NOT NULL UNIQUE,
		title      TEXT    NOT NULL DEFAULT '',
		tags       TEXT    NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		url        TEXT    NOT NULL,
		title      TEXT    NOT NULL DEFAULT '',
		visited_at INTEGER NOT NULL
	);
	CREATE INDEX idx_history_visited_at ON history(visited_at DESC);
	CREATE INDEX idx_history_url ON history(url);`,

	`CREATE TABLE known_hosts (
		host        TEXT    PRIMARY KEY,
		fingerprint TEXT    NOT NULL,
		expires_at  INTEGER NOT NULL DEFAULT 0,
		first_seen  INTEGER NOT NULL
	);`,
}

// SchemaVersion returns the number of migrations applied.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.conn.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// migrate applies the migrations the database has not seen yet, each in
// its own transaction.
func (db *DB) migrate() error {
	version, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
