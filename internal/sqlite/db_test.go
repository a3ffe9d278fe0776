package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
)

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenAndMigrateTwice(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pharmacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, dbx.Migrate(ctx, db))
	require.NoError(t, dbx.Migrate(ctx, db))

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(*) FROM schema_migrations`))
	require.Equal(t, 1, applied)
}

func TestInvoiceTotalIdentityEnforcedBySchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pharmacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, dbx.Migrate(context.Background(), db))

	_, err = db.Exec(`INSERT INTO invoices (invoice_number, patient_id, subtotal, tax, discount, total_amount, status, created_by, created_at)
		VALUES ('INV-1', 1, 100000, 12000, 0, 100000, 'Unpaid', 1, 0)`)
	require.Error(t, err)
}

func TestUniqueViolationDetected(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pharmacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, dbx.Migrate(context.Background(), db))

	insert := `INSERT INTO invoices (invoice_number, patient_id, subtotal, tax, discount, total_amount, status, created_by, created_at)
		VALUES ('INV-1', 1, 100, 12, 0, 112, 'Unpaid', 1, 0)`
	_, err = db.Exec(insert)
	require.NoError(t, err)
	_, err = db.Exec(insert)
	require.Error(t, err)
	require.True(t, dbx.IsUniqueViolation(err, "invoice_number"))
	require.False(t, dbx.IsUniqueViolation(err, "order_id"))
}
