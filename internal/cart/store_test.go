package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

const patientID = 42

var patient = session.Actor{UserID: patientID, Role: session.RolePatient}

func TestAddOrIncrement(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	s := cart.NewStore(db, activity.NewLog(db.DB))
	bio := dbtest.Medicine(t, db.DB, "Biogesic", 550, 10)
	neo := dbtest.Medicine(t, db.DB, "Neozep", 700, 10)

	line, err := s.AddOrIncrement(ctx, patient, patientID, bio, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, line.Quantity)

	line, err = s.AddOrIncrement(ctx, patient, patientID, bio, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, line.Quantity)
	assert.Equal(t, "Biogesic", line.MedicineName)

	_, err = s.AddOrIncrement(ctx, patient, patientID, neo, 1)
	require.NoError(t, err)

	_, err = s.AddOrIncrement(ctx, patient, patientID, bio, -1)
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.AddOrIncrement(ctx, patient, patientID, 999, 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.AddOrIncrement(ctx, patient, patientID+1, bio, 1)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	lines, err := s.View(ctx, patient, patientID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, bio, lines[0].MedicineID)
	assert.Equal(t, neo, lines[1].MedicineID)
	assert.EqualValues(t, 3*550+700, cart.Subtotal(lines))
	assert.Equal(t, 2, dbtest.Count(t, db.DB, "cart"))
}

func TestSetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	s := cart.NewStore(db, nil)
	clerk := session.Actor{UserID: 5, Role: session.RoleClerk}
	bio := dbtest.Medicine(t, db.DB, "Biogesic", 550, 10)

	_, _, err := s.SetQuantity(ctx, clerk, patientID, bio, 2)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.AddOrIncrement(ctx, clerk, patientID, bio, 1)
	require.NoError(t, err)

	line, removed, err := s.SetQuantity(ctx, clerk, patientID, bio, 4)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.EqualValues(t, 4, line.Quantity)

	_, removed, err = s.SetQuantity(ctx, clerk, patientID, bio, 0)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, dbtest.Count(t, db.DB, "cart"))

	require.ErrorIs(t, s.Remove(ctx, clerk, patientID, bio), apperr.ErrNotFound)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	s := cart.NewStore(db, nil)
	bio := dbtest.Medicine(t, db.DB, "Biogesic", 550, 10)

	_, err := s.AddOrIncrement(ctx, patient, patientID, bio, 1)
	require.NoError(t, err)
	other := session.Actor{UserID: 7, Role: session.RolePatient}
	_, err = s.AddOrIncrement(ctx, other, 7, bio, 1)
	require.NoError(t, err)

	n, err := cart.Clear(ctx, db, patientID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	lines, err := cart.Snapshot(ctx, db, patientID, false)
	require.NoError(t, err)
	assert.Empty(t, lines)

	n, err = cart.Clear(ctx, db, patientID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, dbtest.Count(t, db.DB, "cart"))
}
