// Package db opens the DuckDB database detail records are served from.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-termit/internal/detail"
)

// Config holds database configuration.
type Config struct {
	// DataDir holds the database file. Empty opens an in-memory database.
	DataDir string
	DBName  string
}

// Path returns the database file path, or "" for in-memory.
func (c Config) Path() string {
	if c.DataDir == "" {
		return ""
	}
	name := c.DBName
	if name == "" {
		name = "termit"
	}
	return filepath.Join(c.DataDir, "duckdb", name+".duckdb")
}

// Open opens the database and makes sure the detail schema exists.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := detail.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Seed stores records when the detail table is empty. It reports how many
// records it stored.
func Seed(ctx context.Context, conn *sql.DB, records []detail.Record) (int, error) {
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM detail_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count detail records: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	if err := detail.Store(ctx, conn, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
