package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect selects SQL differences between the supported databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

// DB wraps sql.DB together with its dialect.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// NewDB creates a Postgres connection through pgx with sane pool defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Client: db, Dialect: Postgres}, nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return fmt.Errorf("db not configured")
	}
	return d.Client.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

var placeholder = regexp.MustCompile(`\$\d+`)

// Rebind rewrites $n placeholders for drivers that only take '?'.
// Queries must reference their arguments in order.
func (d *DB) Rebind(query string) string {
	if d.Dialect == Postgres {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}
