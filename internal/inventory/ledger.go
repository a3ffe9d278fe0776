// Package inventory is the stock ledger: the only component that changes
// medicine stock, and the one that keeps it from going negative.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// Ledger owns medicine stock.
type Ledger struct {
	db  *dbx.DB
	log *activity.Log
	now func() time.Time
}

func NewLedger(db *dbx.DB, log *activity.Log) *Ledger {
	return &Ledger{db: db, log: log, now: time.Now}
}

// InsufficientStock is the failure for a medicine that cannot cover qty.
func InsufficientStock(medicineID, requested, available int64) error {
	return apperr.WithMetadata(apperr.CodeInsufficientStock,
		fmt.Sprintf("medicine %d has %d in stock, %d requested", medicineID, available, requested),
		map[string]string{
			"medicine_id": strconv.FormatInt(medicineID, 10),
			"requested":   strconv.FormatInt(requested, 10),
			"available":   strconv.FormatInt(available, 10),
		})
}

func notFound(medicineID int64) error {
	return apperr.WithMetadata(apperr.CodeNotFound,
		fmt.Sprintf("medicine %d not found", medicineID),
		map[string]string{"medicine_id": strconv.FormatInt(medicineID, 10)})
}

// Lookup reads one medicine through q.
func Lookup(ctx context.Context, q dbx.Queryer, medicineID int64) (Medicine, error) {
	return lookup(ctx, q, medicineID, false)
}

func lookup(ctx context.Context, q dbx.Queryer, medicineID int64, lock bool) (Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = ?`
	if lock {
		query += dbx.ForUpdate(q)
	}
	var row medicineRow
	if err := dbx.Get(ctx, q, &row, query, medicineID); err != nil {
		if dbx.IsNoRows(err) {
			return Medicine{}, notFound(medicineID)
		}
		return Medicine{}, fmt.Errorf("get medicine %d: %w", medicineID, err)
	}
	return row.toMedicine(), nil
}

// Reserve locks the medicine row for the rest of q's transaction and checks
// that it can cover qty. The returned medicine carries the price to charge.
func (l *Ledger) Reserve(ctx context.Context, q dbx.Queryer, medicineID, qty int64) (Medicine, error) {
	if qty <= 0 {
		return Medicine{}, apperr.Newf(apperr.CodeValidation, "quantity must be positive, got %d", qty)
	}
	m, err := lookup(ctx, q, medicineID, true)
	if err != nil {
		return Medicine{}, err
	}
	if m.Stock < qty {
		return Medicine{}, InsufficientStock(medicineID, qty, m.Stock)
	}
	return m, nil
}

// Decrement removes qty from stock in one conditional statement. Nothing
// changes when the stock cannot cover qty.
func (l *Ledger) Decrement(ctx context.Context, q dbx.Queryer, medicineID, qty int64) error {
	if qty <= 0 {
		return apperr.Newf(apperr.CodeValidation, "quantity must be positive, got %d", qty)
	}
	n, err := dbx.Exec(ctx, q, `UPDATE medicines SET stock = stock - ? WHERE id = ? AND stock >= ?`, qty, medicineID, qty)
	if err != nil {
		return fmt.Errorf("decrement medicine %d: %w", medicineID, err)
	}
	if n == 1 {
		return nil
	}
	m, err := Lookup(ctx, q, medicineID)
	if err != nil {
		return err
	}
	return InsufficientStock(medicineID, qty, m.Stock)
}

// Restore puts qty back into stock, as when an order is cancelled.
func (l *Ledger) Restore(ctx context.Context, q dbx.Queryer, medicineID, qty int64) error {
	if qty <= 0 {
		return apperr.Newf(apperr.CodeValidation, "quantity must be positive, got %d", qty)
	}
	n, err := dbx.Exec(ctx, q, `UPDATE medicines SET stock = stock + ? WHERE id = ?`, qty, medicineID)
	if err != nil {
		return fmt.Errorf("restore medicine %d: %w", medicineID, err)
	}
	if n == 0 {
		return notFound(medicineID)
	}
	return nil
}

// Adjust applies a restock (delta > 0) or correction (delta < 0) in its own
// transaction. It uses the same conditional update as Decrement, so a
// concurrent sale and adjustment cannot drive stock below zero.
func (l *Ledger) Adjust(ctx context.Context, actor session.Actor, medicineID, delta int64, reason string) (Medicine, error) {
	if err := actor.Require(session.RoleAdmin, session.RolePharmacist); err != nil {
		return Medicine{}, err
	}
	if delta == 0 {
		return Medicine{}, apperr.New(apperr.CodeValidation, "delta must not be zero")
	}

	var updated Medicine
	err := l.db.InTx(ctx, func(tx dbx.Queryer) error {
		n, err := dbx.Exec(ctx, tx, `UPDATE medicines SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`, delta, medicineID, delta)
		if err != nil {
			return fmt.Errorf("adjust medicine %d: %w", medicineID, err)
		}
		m, err := Lookup(ctx, tx, medicineID)
		if err != nil {
			return err
		}
		if n == 0 {
			return InsufficientStock(medicineID, -delta, m.Stock)
		}
		updated = m
		return nil
	})
	if err != nil {
		return Medicine{}, err
	}

	l.log.Record(ctx, activity.New(actor.UserID, activity.ActionStockAdjusted,
		"medicine %d stock %+d to %d: %s", medicineID, delta, updated.Stock, strings.TrimSpace(reason)))
	return updated, nil
}

// Get returns one medicine.
func (l *Ledger) Get(ctx context.Context, medicineID int64) (Medicine, error) {
	return Lookup(ctx, l.db, medicineID)
}

// CreateMedicine adds a catalog entry.
func (l *Ledger) CreateMedicine(ctx context.Context, actor session.Actor, in NewMedicine) (Medicine, error) {
	if err := actor.Require(session.RoleAdmin, session.RolePharmacist); err != nil {
		return Medicine{}, err
	}
	m, err := createMedicine(ctx, l.db, in)
	if err != nil {
		return Medicine{}, err
	}
	l.log.Record(ctx, activity.New(actor.UserID, activity.ActionMedicineCreated,
		"medicine %d %q stock %d price %s", m.ID, m.Name, m.Stock, m.PriceCents))
	return m, nil
}

func createMedicine(ctx context.Context, q dbx.Queryer, in NewMedicine) (Medicine, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Medicine{}, apperr.New(apperr.CodeValidation, "medicine name is required")
	}
	if in.PriceCents < 0 {
		return Medicine{}, apperr.New(apperr.CodeValidation, "price must not be negative")
	}
	if in.Stock < 0 {
		return Medicine{}, apperr.New(apperr.CodeValidation, "stock must not be negative")
	}
	id, err := dbx.InsertID(ctx, q,
		`INSERT INTO medicines (name, category, price, stock, expiry_date, supplier) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		in.Name, strings.TrimSpace(in.Category), int64(in.PriceCents), in.Stock, expiryValue(in.ExpiryDate), strings.TrimSpace(in.Supplier))
	if err != nil {
		return Medicine{}, fmt.Errorf("insert medicine: %w", err)
	}
	return Lookup(ctx, q, id)
}

// UpdatePrice changes the current unit price. Order items keep the price they were sold at.
func (l *Ledger) UpdatePrice(ctx context.Context, actor session.Actor, medicineID int64, price money.Cents) (Medicine, error) {
	if err := actor.Require(session.RoleAdmin, session.RolePharmacist); err != nil {
		return Medicine{}, err
	}
	if price < 0 {
		return Medicine{}, apperr.New(apperr.CodeValidation, "price must not be negative")
	}
	n, err := dbx.Exec(ctx, l.db, `UPDATE medicines SET price = ? WHERE id = ?`, int64(price), medicineID)
	if err != nil {
		return Medicine{}, fmt.Errorf("update price %d: %w", medicineID, err)
	}
	if n == 0 {
		return Medicine{}, notFound(medicineID)
	}
	l.log.Record(ctx, activity.New(actor.UserID, activity.ActionMedicinePriceChanged, "medicine %d price %s", medicineID, price))
	return l.Get(ctx, medicineID)
}

// ListFilter narrows List.
type ListFilter struct {
	Query    string
	Category string
	Limit    int
}

// List returns medicines ordered by name.
func (l *Ledger) List(ctx context.Context, f ListFilter) ([]Medicine, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE 1 = 1`
	var args []any
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND LOWER(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		query += ` AND category = ?`
		args = append(args, c)
	}
	query += ` ORDER BY name, id LIMIT ?`
	args = append(args, f.Limit)
	return l.selectMedicines(ctx, query, args...)
}

// Expiring returns stocked medicines expiring within days of now, soonest first.
func (l *Ledger) Expiring(ctx context.Context, days int) ([]Medicine, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := l.now().UTC().AddDate(0, 0, days).Format(dateLayout)
	return l.selectMedicines(ctx,
		`SELECT `+medicineColumns+` FROM medicines
		  WHERE expiry_date IS NOT NULL AND expiry_date <= ? AND stock > 0
		  ORDER BY expiry_date, id`, cutoff)
}

// LowStock returns medicines whose stock is at or below threshold.
func (l *Ledger) LowStock(ctx context.Context, threshold int64) ([]Medicine, error) {
	return l.selectMedicines(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE stock <= ? ORDER BY stock, id`, threshold)
}

func (l *Ledger) selectMedicines(ctx context.Context, query string, args ...any) ([]Medicine, error) {
	var rows []medicineRow
	if err := dbx.Select(ctx, l.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	out := make([]Medicine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMedicine())
	}
	return out, nil
}
