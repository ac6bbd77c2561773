// Package database owns the SQLite connection and schema migrations.
// The driver is modernc.org/sqlite (pure Go, no cgo); migrations are
// versioned SQL files embedded in the binary and applied by goose.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chorushq/chorus/pkg/logger"
)

// DB wraps the *sql.DB pool. The pool is safe for concurrent use; one DB is
// shared by every repository.
type DB struct {
	Conn *sql.DB
}

// New opens (creating if necessary) the SQLite database at path and brings
// the schema up to date. Foreign keys are enforced and WAL journaling is
// enabled; SQLite ships with both off.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite serializes writes internally, but concurrent write
	// transactions from multiple pool connections still race on the file
	// lock. A single connection sidesteps SQLITE_BUSY entirely.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{Conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.L().Info("database ready", zap.String("path", path))
	return db, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

func (db *DB) migrate() error {
	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db.Conn, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
