// Package db opens the libsql database and keeps its schema current.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Config holds connection details. URL wins over Path when both are set.
type Config struct {
	Path      string // embedded database file
	URL       string // remote libsql URL (libsql://, https://)
	AuthToken string
}

// Connect opens the database, verifies it answers queries and applies pending migrations.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*sql.DB, error) {
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("target", redact(cfg)).Msg("Connecting to libsql")

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := verify(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func dataSourceName(cfg Config) (string, error) {
	if cfg.URL != "" {
		if cfg.AuthToken == "" {
			return cfg.URL, nil
		}
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("invalid database url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", cfg.AuthToken)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	if cfg.Path == "" {
		return "", fmt.Errorf("database path or url is required")
	}

	// Ensure database directory exists for embedded mode
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create database directory %s: %w", dir, err)
	}

	return "file:" + cfg.Path, nil
}

func redact(cfg Config) string {
	if cfg.URL == "" {
		return cfg.Path
	}
	if i := strings.Index(cfg.URL, "?"); i >= 0 {
		return cfg.URL[:i]
	}
	return cfg.URL
}

// verify ensures basic connectivity
func verify(ctx context.Context, conn *sql.DB) error {
	var result int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}
	return nil
}

// Migrate runs all pending goose migrations embedded in the binary.
func Migrate(conn *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}
