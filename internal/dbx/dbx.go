// Package dbx is the shared data-access boundary: one *sqlx.DB per process,
// transactions that every component joins, and dialect differences between
// Postgres (pgx) and SQLite.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Queryer is satisfied by *sqlx.DB and *sqlx.Tx. Components take a Queryer so
// they can run inside a transaction owned by the caller.
type Queryer interface {
	sqlx.ExtContext
}

// DB wraps the shared handle.
type DB struct {
	*sqlx.DB
}

// New wraps db.
func New(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// InTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error or panic rolls every statement back.
func (d *DB) InTx(ctx context.Context, fn func(tx Queryer) error) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get scans one row into dest. Queries use ? placeholders.
func Get(ctx context.Context, q Queryer, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

// Select scans all rows into dest.
func Select(ctx context.Context, q Queryer, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

// Exec runs a statement and returns the number of affected rows.
func Exec(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertID runs an INSERT ... RETURNING id statement.
func InsertID(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ForUpdate returns the row-lock suffix for q's dialect. SQLite has a single
// writer, so it needs none.
func ForUpdate(q Queryer) string {
	if q.DriverName() == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// ForUpdateOf is ForUpdate restricted to the rows of table, for joined reads
// that must not lock the joined rows.
func ForUpdateOf(q Queryer, table string) string {
	if q.DriverName() == DriverPostgres {
		return " FOR UPDATE OF " + table
	}
	return ""
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint failure whose
// constraint or column name contains target. An empty target matches any.
func IsUniqueViolation(err error, target string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" &&
			(target == "" || strings.Contains(pgErr.ConstraintName, target) || strings.Contains(pgErr.Detail, target))
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return target == "" || strings.Contains(err.Error(), target)
		}
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		(target == "" || strings.Contains(message, strings.ToLower(target)))
}
