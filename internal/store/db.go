// Package store is the relational persistence layer: the user table and the
// backup copies of live sessions and temporary URLs. SQLite is the default;
// a PostgreSQL instance can be used instead for multi-node setups.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    login TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_login DATETIME
);

CREATE TABLE IF NOT EXISTS sessions (
    string_id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    user_login TEXT NOT NULL,
    user_name TEXT NOT NULL,
    login_time DATETIME NOT NULL,
    is_for_db_only INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS urls (
    string_id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    filename_with_path TEXT NOT NULL,
    file_id TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    file_exists INTEGER NOT NULL DEFAULT 0,
    modified DATETIME,
    created DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_urls_filename_with_path ON urls(filename_with_path);
`

// postgres needs a different autoincrement spelling
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    login TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    last_login TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sessions (
    string_id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    user_login TEXT NOT NULL,
    user_name TEXT NOT NULL,
    login_time TIMESTAMPTZ NOT NULL,
    is_for_db_only BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS urls (
    string_id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    filename_with_path TEXT NOT NULL,
    file_id TEXT NOT NULL,
    size BIGINT NOT NULL DEFAULT 0,
    file_exists BOOLEAN NOT NULL DEFAULT FALSE,
    modified TIMESTAMPTZ,
    created TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_urls_filename_with_path ON urls(filename_with_path);
`

// DB wraps the sql handle together with the active driver, which decides
// schema dialect and placeholder style.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured database and creates the schema. driver
// is "sqlite" (dsn is a file path) or "postgres" (dsn is a connection
// string).
func Open(driver, dsn string) (*DB, error) {
	var (
		handle *sql.DB
		err    error
	)
	switch driver {
	case DriverSQLite:
		handle, err = sql.Open("sqlite", dsn)
	case DriverPostgres:
		handle, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, err := handle.Exec(pragma); err != nil {
				handle.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	}

	ddl := schema
	if driver == DriverPostgres {
		ddl = schemaPostgres
	}
	if _, err := handle.Exec(ddl); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{DB: handle, driver: driver}, nil
}

// rebind rewrites '?' placeholders into the '$n' style when talking to
// PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
