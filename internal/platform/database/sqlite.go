package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"orgauthz/internal/platform/config"
)

// Open connects to the sqlite database at cfg.Path. Every transaction begins
// with BEGIN IMMEDIATE so that count-then-insert sequences run under the
// database write lock; concurrent writers wait up to the busy timeout.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(cfg.Path, cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// DSN builds the go-sqlite3 connection string for path.
func DSN(path string, busyTimeout time.Duration) string {
	path = strings.TrimPrefix(path, "file:")
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_journal_mode=WAL", path, busyTimeout.Milliseconds())
}
