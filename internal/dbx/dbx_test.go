package dbx_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
)

func TestLockSuffixes(t *testing.T) {
	pg := sqlx.NewDb(nil, dbx.DriverPostgres)
	lite := sqlx.NewDb(nil, dbx.DriverSQLite)

	assert.Equal(t, " FOR UPDATE", dbx.ForUpdate(pg))
	assert.Equal(t, " FOR UPDATE OF c", dbx.ForUpdateOf(pg, "c"))
	assert.Empty(t, dbx.ForUpdate(lite))
	assert.Empty(t, dbx.ForUpdateOf(lite, "c"))
}
