// Package dbtest opens migrated SQLite databases for tests and seeds fixtures.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/sqlite"
)

// Open returns a fresh migrated database closed at test cleanup.
func Open(t testing.TB) *dbx.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "pharmacy.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := dbx.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbx.New(db)
}

// Medicine inserts a medicine row and returns its id.
func Medicine(t testing.TB, db *sqlx.DB, name string, priceCents int64, stock int64) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(db.Rebind(`INSERT INTO medicines (name, category, price, stock, supplier)
		VALUES (?, 'General', ?, ?, 'Unilab') RETURNING id`), name, priceCents, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert medicine %s: %v", name, err)
	}
	return id
}

// Stock returns the current stock of a medicine.
func Stock(t testing.TB, db *sqlx.DB, medicineID int64) int64 {
	t.Helper()

	var stock int64
	if err := db.Get(&stock, db.Rebind(`SELECT stock FROM medicines WHERE id = ?`), medicineID); err != nil {
		t.Fatalf("read stock %d: %v", medicineID, err)
	}
	return stock
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
