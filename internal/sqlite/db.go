// Package sqlite opens the embedded SQLite store used for local runs and tests.
package sqlite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
)

func init() {
	sqlx.BindDriver(dbx.DriverSQLite, sqlx.QUESTION)
}

// Open opens path with foreign keys on and a busy timeout. The pool is capped at
// one connection, so SQLite sees a single writer and transactions serialize.
func Open(path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open(dbx.DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}
