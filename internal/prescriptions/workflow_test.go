package prescriptions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/prescriptions"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

var (
	patient    = session.Actor{UserID: 10, Role: session.RolePatient}
	pharmacist = session.Actor{UserID: 20, Role: session.RolePharmacist}
)

func newWorkflow(t *testing.T) (*prescriptions.Workflow, *dbx.DB, *events.Recorder) {
	t.Helper()
	db := dbtest.Open(t)
	rec := &events.Recorder{}
	w := prescriptions.NewWorkflow(db, activity.NewLog(db.DB), &events.Emitter{Publisher: rec, Producer: "test"})
	return w, db, rec
}

func submission(medicineID *int64) prescriptions.Submission {
	return prescriptions.Submission{
		PatientID:  patient.UserID,
		MedicineID: medicineID,
		Dosage:     "500mg",
		Frequency:  "3x daily",
		Duration:   "7 days",
		DoctorName: "Reyes",
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	w, db, _ := newWorkflow(t)
	med := dbtest.Medicine(t, db.DB, "Amoxicillin", 1200, 10)

	p, err := w.Submit(ctx, patient, submission(&med))
	require.NoError(t, err)
	assert.Equal(t, prescriptions.StatusPending, p.Status)
	require.NotNil(t, p.MedicineID)
	assert.Equal(t, med, *p.MedicineID)

	in := submission(nil)
	in.DoctorName = " "
	in.Duration = ""
	_, err = w.Submit(ctx, patient, in)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "doctor_name,duration", apperr.MetadataOf(err)["fields"])

	missing := int64(999)
	_, err = w.Submit(ctx, patient, submission(&missing))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	other := submission(nil)
	other.PatientID = 11
	_, err = w.Submit(ctx, patient, other)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	assert.Equal(t, 1, dbtest.Count(t, db.DB, "prescriptions"))
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	w, _, rec := newWorkflow(t)

	p, err := w.Submit(ctx, patient, submission(nil))
	require.NoError(t, err)

	_, err = w.Review(ctx, patient, p.ID, prescriptions.DecisionApprove, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.Review(ctx, pharmacist, p.ID, "maybe", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionReject, "  ")
	require.ErrorIs(t, err, apperr.ErrMissingRejectionReason)

	got, err := w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, prescriptions.StatusApproved, got.Status)
	require.NotNil(t, got.PharmacistID)
	assert.Equal(t, pharmacist.UserID, *got.PharmacistID)
	assert.NotNil(t, got.ReviewedAt)

	_, err = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionReject, "changed my mind")
	require.ErrorIs(t, err, apperr.ErrAlreadyReviewed)

	// Validation runs before the status check.
	_, err = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionReject, "")
	require.ErrorIs(t, err, apperr.ErrMissingRejectionReason)

	_, err = w.Review(ctx, pharmacist, 999, prescriptions.DecisionApprove, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{events.TopicPrescriptionReviewed}, rec.Topics())
}

func TestConcurrentReviewsOneWins(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newWorkflow(t)
	p, err := w.Submit(ctx, patient, submission(nil))
	require.NoError(t, err)

	results := make([]error, 4)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			_, results[i] = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionReject, "expired")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var wins, lost int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.CodeOf(err) == apperr.CodeAlreadyReviewed:
			lost++
		default:
			t.Fatalf("unexpected review error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, lost)
}

func TestDispense(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newWorkflow(t)
	p, err := w.Submit(ctx, patient, submission(nil))
	require.NoError(t, err)

	_, err = w.Dispense(ctx, pharmacist, p.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionApprove, "")
	require.NoError(t, err)
	got, err := w.Dispense(ctx, pharmacist, p.ID)
	require.NoError(t, err)
	assert.Equal(t, prescriptions.StatusDispensed, got.Status)
	assert.NotNil(t, got.DispensedAt)

	_, err = w.Dispense(ctx, pharmacist, p.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newWorkflow(t)
	first, err := w.Submit(ctx, patient, submission(nil))
	require.NoError(t, err)
	second, err := w.Submit(ctx, patient, submission(nil))
	require.NoError(t, err)
	_, err = w.Review(ctx, pharmacist, first.ID, prescriptions.DecisionApprove, "")
	require.NoError(t, err)

	pending, err := w.ListPending(ctx, pharmacist)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	mine, err := w.ListByPatient(ctx, patient, patient.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	_, err = w.Get(ctx, session.Actor{UserID: 11, Role: session.RolePatient}, first.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCheckDispensable(t *testing.T) {
	ctx := context.Background()
	w, db, _ := newWorkflow(t)
	amox := dbtest.Medicine(t, db.DB, "Amoxicillin", 1200, 10)
	bio := dbtest.Medicine(t, db.DB, "Biogesic", 550, 10)

	require.NoError(t, prescriptions.CheckDispensable(ctx, db, patient.UserID, bio))

	p, err := w.Submit(ctx, patient, submission(&amox))
	require.NoError(t, err)
	err = prescriptions.CheckDispensable(ctx, db, patient.UserID, amox)
	require.ErrorIs(t, err, apperr.ErrPrescriptionNotApproved)

	_, err = w.Review(ctx, pharmacist, p.ID, prescriptions.DecisionApprove, "")
	require.NoError(t, err)
	require.NoError(t, prescriptions.CheckDispensable(ctx, db, patient.UserID, amox))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, prescriptions.CanTransition(prescriptions.StatusPending, prescriptions.StatusApproved))
	assert.True(t, prescriptions.CanTransition(prescriptions.StatusApproved, prescriptions.StatusDispensed))
	assert.False(t, prescriptions.CanTransition(prescriptions.StatusRejected, prescriptions.StatusApproved))
	assert.False(t, prescriptions.CanTransition(prescriptions.StatusDispensed, prescriptions.StatusPending))
}
