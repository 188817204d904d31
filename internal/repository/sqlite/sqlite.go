// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is the default backend: a single file (or ":memory:" in tests), no
// server to run. modernc.org/sqlite is a pure Go translation of the C code,
// so there is no CGo and cross-compilation keeps working.
//
// STORAGE CONVENTIONS:
//   - Timestamps are TEXT in a fixed-width UTC layout (see timeLayout), so
//     comparing and ordering the strings is the same as comparing the instants.
//   - Tags are a JSON array in a TEXT column, NULL when there are none.
//     Overlap is tested with json_each.
//   - Emails are stored lower-cased; uniqueness is enforced by the index.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// The blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction. time.RFC3339Nano
// trims trailing zeros, which would break lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB connection pool and provides repository methods.
// It implements both repository.ArticleRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/kb.db"  → file-based database (persistent)
//   - ":memory:"    → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// A single connection serializes writers, which SQLite does anyway, and
	// keeps ":memory:" pointing at one database instead of one per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			hash       TEXT NOT NULL,
			salt       TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			header     TEXT NOT NULL,
			content    TEXT,
			tags       TEXT,
			access     TEXT NOT NULL DEFAULT 'PUBLIC'
			           CHECK (access IN ('PUBLIC', 'RESTRICTED', 'PRIVATE')),
			user_id    TEXT NOT NULL REFERENCES users(id)
		);
		CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
		CREATE INDEX IF NOT EXISTS idx_articles_user_id ON articles(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating articles table: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// isUniqueViolation recognizes SQLite's constraint error by its message.
// The driver's error type carries only a numeric code, and matching the text
// works for every SQLite build.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isNoRows is errors.Is(err, sql.ErrNoRows), spelled once.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
