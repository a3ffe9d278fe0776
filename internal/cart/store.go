// Package cart stages medicine lines per patient until checkout.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// Line is one cart entry joined with the medicine's current price and stock.
type Line struct {
	ID           int64       `json:"id"`
	PatientID    int64       `json:"patient_id"`
	MedicineID   int64       `json:"medicine_id"`
	MedicineName string      `json:"medicine_name"`
	Quantity     int64       `json:"quantity"`
	UnitPrice    money.Cents `json:"unit_price_cents"`
	Stock        int64       `json:"stock"`
	AddedAt      time.Time   `json:"added_at"`
}

// LineTotal is quantity times the current unit price.
func (l Line) LineTotal() money.Cents {
	return l.UnitPrice * money.Cents(l.Quantity)
}

// Subtotal sums line totals at current prices. It is for display only; checkout
// prices lines from locked medicine rows.
func Subtotal(lines []Line) money.Cents {
	var total money.Cents
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

type lineRow struct {
	ID           int64  `db:"id"`
	PatientID    int64  `db:"patient_id"`
	MedicineID   int64  `db:"medicine_id"`
	MedicineName string `db:"medicine_name"`
	Quantity     int64  `db:"quantity"`
	UnitPrice    int64  `db:"unit_price"`
	Stock        int64  `db:"stock"`
	AddedAt      int64  `db:"added_at"`
}

func (r lineRow) toLine() Line {
	return Line{
		ID:           r.ID,
		PatientID:    r.PatientID,
		MedicineID:   r.MedicineID,
		MedicineName: r.MedicineName,
		Quantity:     r.Quantity,
		UnitPrice:    money.Cents(r.UnitPrice),
		Stock:        r.Stock,
		AddedAt:      time.UnixMilli(r.AddedAt).UTC(),
	}
}

const lineSelect = `SELECT c.id, c.patient_id, c.medicine_id, m.name AS medicine_name, c.quantity,
       m.price AS unit_price, m.stock, c.added_at
  FROM cart c JOIN medicines m ON m.id = c.medicine_id`

// Store persists cart lines.
type Store struct {
	db  *dbx.DB
	log *activity.Log
	now func() time.Time
}

func NewStore(db *dbx.DB, log *activity.Log) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

// AddOrIncrement adds qty of a medicine to the patient's cart, or increases an
// existing line. A zero qty means one.
func (s *Store) AddOrIncrement(ctx context.Context, actor session.Actor, patientID, medicineID, qty int64) (Line, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return Line{}, err
	}
	if qty < 0 {
		return Line{}, apperr.Newf(apperr.CodeValidation, "quantity must not be negative, got %d", qty)
	}
	if qty == 0 {
		qty = 1
	}
	if _, err := inventory.Lookup(ctx, s.db, medicineID); err != nil {
		return Line{}, err
	}

	_, err := dbx.Exec(ctx, s.db,
		`INSERT INTO cart (patient_id, medicine_id, quantity, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (patient_id, medicine_id) DO UPDATE SET quantity = cart.quantity + excluded.quantity`,
		patientID, medicineID, qty, s.now().UnixMilli())
	if err != nil {
		return Line{}, fmt.Errorf("upsert cart line: %w", err)
	}
	line, err := s.line(ctx, patientID, medicineID)
	if err != nil {
		return Line{}, err
	}

	s.log.Record(ctx, activity.New(actor.UserID, activity.ActionCartItemAdded,
		"patient %d medicine %d +%d (now %d)", patientID, medicineID, qty, line.Quantity))
	return line, nil
}

// SetQuantity replaces a line's quantity. A quantity at or below zero removes
// the line, reported by removed.
func (s *Store) SetQuantity(ctx context.Context, actor session.Actor, patientID, medicineID, qty int64) (line Line, removed bool, err error) {
	if err := actor.RequireFor(patientID); err != nil {
		return Line{}, false, err
	}
	if qty <= 0 {
		if err := s.Remove(ctx, actor, patientID, medicineID); err != nil {
			return Line{}, false, err
		}
		return Line{}, true, nil
	}

	n, err := dbx.Exec(ctx, s.db,
		`UPDATE cart SET quantity = ? WHERE patient_id = ? AND medicine_id = ?`, qty, patientID, medicineID)
	if err != nil {
		return Line{}, false, fmt.Errorf("set cart quantity: %w", err)
	}
	if n == 0 {
		return Line{}, false, lineNotFound(patientID, medicineID)
	}
	line, err = s.line(ctx, patientID, medicineID)
	if err != nil {
		return Line{}, false, err
	}

	s.log.Record(ctx, activity.New(actor.UserID, activity.ActionCartItemUpdated,
		"patient %d medicine %d quantity %d", patientID, medicineID, qty))
	return line, false, nil
}

// Remove deletes a line.
func (s *Store) Remove(ctx context.Context, actor session.Actor, patientID, medicineID int64) error {
	if err := actor.RequireFor(patientID); err != nil {
		return err
	}
	n, err := dbx.Exec(ctx, s.db, `DELETE FROM cart WHERE patient_id = ? AND medicine_id = ?`, patientID, medicineID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if n == 0 {
		return lineNotFound(patientID, medicineID)
	}
	s.log.Record(ctx, activity.New(actor.UserID, activity.ActionCartItemRemoved,
		"patient %d medicine %d", patientID, medicineID))
	return nil
}

// View returns the patient's lines for display.
func (s *Store) View(ctx context.Context, actor session.Actor, patientID int64) ([]Line, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return nil, err
	}
	return Snapshot(ctx, s.db, patientID, false)
}

// Snapshot reads the patient's lines in insertion order through q. With lock
// the cart rows stay locked until q's transaction ends, so a second checkout
// of the same cart waits and then sees it emptied.
func Snapshot(ctx context.Context, q dbx.Queryer, patientID int64, lock bool) ([]Line, error) {
	query := lineSelect + ` WHERE c.patient_id = ? ORDER BY c.id`
	if lock {
		query += dbx.ForUpdateOf(q, "c")
	}
	var rows []lineRow
	if err := dbx.Select(ctx, q, &rows, query, patientID); err != nil {
		return nil, fmt.Errorf("snapshot cart %d: %w", patientID, err)
	}
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.toLine())
	}
	return lines, nil
}

// Clear empties the patient's cart through q and returns the lines deleted.
func Clear(ctx context.Context, q dbx.Queryer, patientID int64) (int64, error) {
	n, err := dbx.Exec(ctx, q, `DELETE FROM cart WHERE patient_id = ?`, patientID)
	if err != nil {
		return 0, fmt.Errorf("clear cart %d: %w", patientID, err)
	}
	return n, nil
}

func (s *Store) line(ctx context.Context, patientID, medicineID int64) (Line, error) {
	var row lineRow
	err := dbx.Get(ctx, s.db, &row, lineSelect+` WHERE c.patient_id = ? AND c.medicine_id = ?`, patientID, medicineID)
	if err != nil {
		if dbx.IsNoRows(err) {
			return Line{}, lineNotFound(patientID, medicineID)
		}
		return Line{}, fmt.Errorf("get cart line: %w", err)
	}
	return row.toLine(), nil
}

func lineNotFound(patientID, medicineID int64) error {
	return apperr.WithMetadata(apperr.CodeNotFound,
		fmt.Sprintf("medicine %d is not in patient %d's cart", medicineID, patientID),
		map[string]string{
			"patient_id":  fmt.Sprint(patientID),
			"medicine_id": fmt.Sprint(medicineID),
		})
}
