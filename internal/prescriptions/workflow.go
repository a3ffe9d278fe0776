// Package prescriptions runs the pharmacist review of submitted prescriptions
// and answers whether a patient may buy a prescription-linked medicine.
package prescriptions

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

type Prescription struct {
	ID              int64      `json:"id"`
	PatientID       int64      `json:"patient_id"`
	MedicineID      *int64     `json:"medicine_id,omitempty"`
	Status          Status     `json:"status"`
	Dosage          string     `json:"dosage"`
	Frequency       string     `json:"frequency"`
	Duration        string     `json:"duration"`
	DoctorName      string     `json:"doctor_name"`
	Notes           string     `json:"notes,omitempty"`
	PharmacistID    *int64     `json:"pharmacist_id,omitempty"`
	PharmacistNotes string     `json:"pharmacist_notes,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_date,omitempty"`
	DispensedAt     *time.Time `json:"dispensed_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Submission is what a patient files.
type Submission struct {
	PatientID  int64  `json:"patient_id"`
	MedicineID *int64 `json:"medicine_id,omitempty"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Duration   string `json:"duration"`
	DoctorName string `json:"doctor_name"`
	Notes      string `json:"notes"`
}

type prescriptionRow struct {
	ID              int64          `db:"id"`
	PatientID       int64          `db:"patient_id"`
	MedicineID      sql.NullInt64  `db:"medicine_id"`
	Status          string         `db:"status"`
	Dosage          string         `db:"dosage"`
	Frequency       string         `db:"frequency"`
	Duration        string         `db:"duration"`
	DoctorName      string         `db:"doctor_name"`
	Notes           string         `db:"notes"`
	PharmacistID    sql.NullInt64  `db:"pharmacist_id"`
	PharmacistNotes sql.NullString `db:"pharmacist_notes"`
	ReviewedDate    sql.NullInt64  `db:"reviewed_date"`
	DispensedDate   sql.NullInt64  `db:"dispensed_date"`
	CreatedAt       int64          `db:"created_at"`
}

const prescriptionColumns = `id, patient_id, medicine_id, status, dosage, frequency, duration, doctor_name,
       notes, pharmacist_id, pharmacist_notes, reviewed_date, dispensed_date, created_at`

func (r prescriptionRow) toPrescription() Prescription {
	p := Prescription{
		ID:              r.ID,
		PatientID:       r.PatientID,
		Status:          Status(r.Status),
		Dosage:          r.Dosage,
		Frequency:       r.Frequency,
		Duration:        r.Duration,
		DoctorName:      r.DoctorName,
		Notes:           r.Notes,
		PharmacistNotes: r.PharmacistNotes.String,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.MedicineID.Valid {
		id := r.MedicineID.Int64
		p.MedicineID = &id
	}
	if r.PharmacistID.Valid {
		id := r.PharmacistID.Int64
		p.PharmacistID = &id
	}
	if r.ReviewedDate.Valid {
		t := time.UnixMilli(r.ReviewedDate.Int64).UTC()
		p.ReviewedAt = &t
	}
	if r.DispensedDate.Valid {
		t := time.UnixMilli(r.DispensedDate.Int64).UTC()
		p.DispensedAt = &t
	}
	return p
}

type Workflow struct {
	db     *dbx.DB
	log    *activity.Log
	events *events.Emitter
	now    func() time.Time
}

func NewWorkflow(db *dbx.DB, log *activity.Log, emitter *events.Emitter) *Workflow {
	return &Workflow{db: db, log: log, events: emitter, now: time.Now}
}

// Submit files a prescription for review.
func (w *Workflow) Submit(ctx context.Context, actor session.Actor, in Submission) (Prescription, error) {
	if err := actor.RequireFor(in.PatientID); err != nil {
		return Prescription{}, err
	}
	if err := validate(in); err != nil {
		return Prescription{}, err
	}
	if in.MedicineID != nil {
		if _, err := inventory.Lookup(ctx, w.db, *in.MedicineID); err != nil {
			return Prescription{}, err
		}
	}

	id, err := dbx.InsertID(ctx, w.db,
		`INSERT INTO prescriptions (patient_id, medicine_id, status, dosage, frequency, duration, doctor_name, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		in.PatientID, in.MedicineID, string(StatusPending), strings.TrimSpace(in.Dosage), strings.TrimSpace(in.Frequency),
		strings.TrimSpace(in.Duration), strings.TrimSpace(in.DoctorName), strings.TrimSpace(in.Notes), w.now().UnixMilli())
	if err != nil {
		return Prescription{}, fmt.Errorf("insert prescription: %w", err)
	}
	p, err := w.get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}

	w.log.Record(ctx, activity.New(actor.UserID, activity.ActionPrescriptionSubmitted,
		"prescription %d for patient %d by Dr. %s", p.ID, p.PatientID, p.DoctorName))
	return p, nil
}

func validate(in Submission) error {
	missing := []string{}
	if in.PatientID <= 0 {
		missing = append(missing, "patient_id")
	}
	for _, f := range []struct{ name, value string }{
		{"doctor_name", in.DoctorName},
		{"dosage", in.Dosage},
		{"frequency", in.Frequency},
		{"duration", in.Duration},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apperr.WithMetadata(apperr.CodeValidation,
		"missing required fields: "+strings.Join(missing, ", "),
		map[string]string{"fields": strings.Join(missing, ",")})
}

// Review records a pharmacist's decision on a Pending prescription. Input is
// validated before the prescription is read, and the transition itself is a
// conditional update so only one concurrent review can win.
func (w *Workflow) Review(ctx context.Context, actor session.Actor, id int64, decision Decision, notes string) (Prescription, error) {
	if err := actor.Require(session.RolePharmacist); err != nil {
		return Prescription{}, err
	}
	next, ok := decision.status()
	if !ok {
		return Prescription{}, apperr.Newf(apperr.CodeValidation, "unknown decision %q", decision)
	}
	notes = strings.TrimSpace(notes)
	if next == StatusRejected && notes == "" {
		return Prescription{}, apperr.New(apperr.CodeMissingRejectionReason, "a rejection needs a reason")
	}

	from, _ := source(next)
	n, err := dbx.Exec(ctx, w.db,
		`UPDATE prescriptions SET status = ?, pharmacist_id = ?, pharmacist_notes = ?, reviewed_date = ?
		  WHERE id = ? AND status = ?`,
		string(next), actor.UserID, notes, w.now().UnixMilli(), id, string(from))
	if err != nil {
		return Prescription{}, fmt.Errorf("review prescription %d: %w", id, err)
	}
	p, err := w.get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if n == 0 {
		return Prescription{}, apperr.WithMetadata(apperr.CodeAlreadyReviewed,
			fmt.Sprintf("prescription %d is already %s", id, p.Status),
			map[string]string{"prescription_id": strconv.FormatInt(id, 10), "status": string(p.Status)})
	}

	w.log.Record(ctx, activity.New(actor.UserID, activity.ActionPrescriptionReviewed,
		"prescription %d %s", id, p.Status))
	w.events.Emit(ctx, events.TopicPrescriptionReviewed, events.EventPrescriptionReviewed, p.ID, events.PrescriptionReviewedPayload{
		PrescriptionID: p.ID,
		PatientID:      p.PatientID,
		PharmacistID:   actor.UserID,
		Status:         string(p.Status),
	})
	return p, nil
}

// Dispense marks an Approved prescription as handed over.
func (w *Workflow) Dispense(ctx context.Context, actor session.Actor, id int64) (Prescription, error) {
	if err := actor.Require(session.RolePharmacist); err != nil {
		return Prescription{}, err
	}
	from, _ := source(StatusDispensed)
	n, err := dbx.Exec(ctx, w.db,
		`UPDATE prescriptions SET status = ?, dispensed_date = ? WHERE id = ? AND status = ?`,
		string(StatusDispensed), w.now().UnixMilli(), id, string(from))
	if err != nil {
		return Prescription{}, fmt.Errorf("dispense prescription %d: %w", id, err)
	}
	p, err := w.get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if n == 0 {
		return Prescription{}, apperr.WithMetadata(apperr.CodeInvalidTransition,
			fmt.Sprintf("prescription %d cannot go from %s to %s", id, p.Status, StatusDispensed),
			map[string]string{"prescription_id": strconv.FormatInt(id, 10), "status": string(p.Status)})
	}

	w.log.Record(ctx, activity.New(actor.UserID, activity.ActionPrescriptionDispensed, "prescription %d", id))
	return p, nil
}

// Get returns one prescription. Patients may only read their own.
func (w *Workflow) Get(ctx context.Context, actor session.Actor, id int64) (Prescription, error) {
	p, err := w.get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if err := actor.RequireFor(p.PatientID); err != nil {
		return Prescription{}, err
	}
	return p, nil
}

// ListByPatient returns a patient's prescriptions, newest first.
func (w *Workflow) ListByPatient(ctx context.Context, actor session.Actor, patientID int64) ([]Prescription, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return nil, err
	}
	return w.list(ctx, `WHERE patient_id = ? ORDER BY id DESC`, patientID)
}

// ListPending returns the review queue, oldest first.
func (w *Workflow) ListPending(ctx context.Context, actor session.Actor) ([]Prescription, error) {
	if err := actor.Require(session.RolePharmacist); err != nil {
		return nil, err
	}
	return w.list(ctx, `WHERE status = ? ORDER BY id`, string(StatusPending))
}

// CheckDispensable fails with PRESCRIPTION_NOT_APPROVED when the patient has
// prescriptions linked to medicineID and none of them is Approved. Medicines
// with no linked prescription pass.
func CheckDispensable(ctx context.Context, q dbx.Queryer, patientID, medicineID int64) error {
	var statuses []string
	if err := dbx.Select(ctx, q, &statuses,
		`SELECT status FROM prescriptions WHERE patient_id = ? AND medicine_id = ?`, patientID, medicineID); err != nil {
		return fmt.Errorf("prescriptions for patient %d medicine %d: %w", patientID, medicineID, err)
	}
	if len(statuses) == 0 {
		return nil
	}
	for _, s := range statuses {
		if Status(s) == StatusApproved {
			return nil
		}
	}
	return apperr.WithMetadata(apperr.CodePrescriptionNotApproved,
		fmt.Sprintf("medicine %d needs an approved prescription", medicineID),
		map[string]string{
			"patient_id":  strconv.FormatInt(patientID, 10),
			"medicine_id": strconv.FormatInt(medicineID, 10),
		})
}

func (w *Workflow) get(ctx context.Context, id int64) (Prescription, error) {
	var row prescriptionRow
	if err := dbx.Get(ctx, w.db, &row, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = ?`, id); err != nil {
		if dbx.IsNoRows(err) {
			return Prescription{}, apperr.WithMetadata(apperr.CodeNotFound,
				fmt.Sprintf("prescription %d not found", id),
				map[string]string{"prescription_id": strconv.FormatInt(id, 10)})
		}
		return Prescription{}, fmt.Errorf("get prescription %d: %w", id, err)
	}
	return row.toPrescription(), nil
}

func (w *Workflow) list(ctx context.Context, where string, args ...any) ([]Prescription, error) {
	var rows []prescriptionRow
	if err := dbx.Select(ctx, w.db, &rows, `SELECT `+prescriptionColumns+` FROM prescriptions `+where, args...); err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	out := make([]Prescription, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPrescription())
	}
	return out, nil
}
