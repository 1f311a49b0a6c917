// Package history records the outcome of every package build so that past
// runs and their tags can be inspected later.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Status is the outcome of a package build
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Build is one recorded package build
type Build struct {
	ID         string    `db:"id" json:"id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	Package    string    `db:"package" json:"package"`
	Version    string    `db:"version" json:"version"`
	Tag        string    `db:"tag" json:"tag"`
	Status     Status    `db:"status" json:"status"`
	Error      string    `db:"error" json:"error,omitempty"`
	Committed  bool      `db:"committed" json:"committed"`
	Warnings   int       `db:"warnings" json:"warnings"`
	Errors     int       `db:"errors" json:"errors"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	batch_id    TEXT NOT NULL,
	package     TEXT NOT NULL,
	version     TEXT NOT NULL,
	tag         TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	committed   BOOLEAN NOT NULL DEFAULT FALSE,
	warnings    INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
)`

const insertBuild = `
INSERT INTO builds (
	id, batch_id, package, version, tag, status, error,
	committed, warnings, errors, started_at, finished_at
) VALUES (
	:id, :batch_id, :package, :version, :tag, :status, :error,
	:committed, :warnings, :errors, :started_at, :finished_at
)`

// Store persists builds in a SQL database
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and creates the schema if needed. For
// SQLite the parent directory of a file DSN is created.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !isMemoryDSN(dsn) {
			if dir := filepath.Dir(dsnPath(dsn)); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("creating history directory: %w", err)
				}
			}
		}
	case DriverPostgres, DriverPgx:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}
	if driver == DriverSQLite && isMemoryDSN(dsn) {
		// every connection would get its own empty in-memory database
		db.SetMaxOpenConns(1)
	}

	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database without touching the schema
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the builds table
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}
	return nil
}

// Record stores a build
func (s *Store) Record(ctx context.Context, b Build) error {
	if _, err := s.db.NamedExecContext(ctx, insertBuild, b); err != nil {
		return fmt.Errorf("recording build of %s: %w", b.Package, err)
	}
	return nil
}

// Filter narrows List results
type Filter struct {
	// Package limits results to one package name
	Package string
	// Limit caps the number of rows; zero means 50
	Limit int
}

// List returns recorded builds, newest first
func (s *Store) List(ctx context.Context, f Filter) ([]Build, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM builds`
	var args []any
	if f.Package != "" {
		query += ` WHERE package = ?`
		args = append(args, f.Package)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	builds := []Build{}
	if err := s.db.SelectContext(ctx, &builds, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	return builds, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// dsnPath strips the file: scheme and query parameters from a SQLite DSN
func dsnPath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	return p
}
