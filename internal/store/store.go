// Package store is the durable relational archive: subscriptions and usage,
// finalized briefs with their site definitions, archived sessions, agent run
// history, the theme catalog and brief embeddings.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Postgres pool settings
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller
var ErrNotFound = errors.New("record not found")

// Opts holds configuration options for the store
type Opts struct {
	Driver string // sqlite3 or postgres
	DSN    string
}

// Option configures the store
type Option func(*Opts)

// WithDriver selects the database driver
func WithDriver(driver string) Option {
	return func(o *Opts) { o.Driver = driver }
}

// WithDSN sets the connection string. For SQLite it is a file path or ":memory:".
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store wraps the database handle and its dialect
type Store struct {
	db      *sql.DB
	dialect string
}

// Open connects to the database and applies migrations
func Open(opts ...Option) (*Store, error) {
	cfg := Opts{Driver: DriverSQLite, DSN: ":memory:"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Driver == "" {
		cfg.Driver = DetectDriver(cfg.DSN)
	}

	slog.Debug("Store.Open: opening database", "driver", cfg.Driver)

	var migrations string
	switch cfg.Driver {
	case DriverSQLite:
		migrations = sqliteMigrations
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			cfg.DSN = expandPath(cfg.DSN)
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	case DriverPostgres:
		migrations = postgresMigrations
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverPostgres {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetMaxIdleConns(DefaultMaxIdleConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	} else {
		// each SQLite connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Store.Open: migrations applied", "driver", cfg.Driver)
	return &Store{db: db, dialect: cfg.Driver}, nil
}

// DetectDriver guesses the driver from a DSN
func DetectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the driver name
func (s *Store) Dialect() string { return s.dialect }

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Rebind rewrites ? placeholders to $n for Postgres
func (s *Store) Rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.Rebind(query), args...)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
