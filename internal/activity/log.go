// Package activity keeps the append-only audit trail of state-changing operations.
package activity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
)

// Actions written by the core.
const (
	ActionCartItemAdded         = "cart_item_added"
	ActionCartItemUpdated       = "cart_item_updated"
	ActionCartItemRemoved       = "cart_item_removed"
	ActionOrderCreated          = "order_created"
	ActionOrderStatusChanged    = "order_status_changed"
	ActionOrderCancelled        = "order_cancelled"
	ActionStockDecremented      = "stock_decremented"
	ActionStockAdjusted         = "stock_adjusted"
	ActionStockRestored         = "stock_restored"
	ActionMedicineCreated       = "medicine_created"
	ActionMedicinePriceChanged  = "medicine_price_changed"
	ActionInvoiceCreated        = "invoice_created"
	ActionPaymentRecorded       = "payment_recorded"
	ActionInvoiceCancelled      = "invoice_cancelled"
	ActionPrescriptionSubmitted = "prescription_submitted"
	ActionPrescriptionReviewed  = "prescription_reviewed"
	ActionPrescriptionDispensed = "prescription_dispensed"
)

const writeTimeout = 3 * time.Second

// Entry is one audit record.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds an entry with formatted details.
func New(userID int64, action, format string, args ...any) Entry {
	return Entry{UserID: userID, Action: action, Details: fmt.Sprintf(format, args...)}
}

// Log appends entries outside the business transaction. A failed write is
// reported through the standard logger and never reaches the caller.
type Log struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLog returns a Log writing to db.
func NewLog(db *sqlx.DB) *Log {
	return &Log{db: db, now: time.Now}
}

// Record appends entries. It is safe to call on a nil Log.
func (l *Log) Record(ctx context.Context, entries ...Entry) {
	if l == nil || l.db == nil || len(entries) == 0 {
		return
	}
	// The primary operation has already committed; a caller going away must not drop its audit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	created := l.now().UTC()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = created
		}
		if _, err := dbx.Exec(ctx, l.db,
			`INSERT INTO activity_log (user_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
			e.UserID, e.Action, e.Details, e.CreatedAt.UnixMilli(),
		); err != nil {
			log.Printf("activity: record %s for user %d: %v", e.Action, e.UserID, err)
		}
	}
}

type entryRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Action    string `db:"action"`
	Details   string `db:"details"`
	CreatedAt int64  `db:"created_at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	UserID int64
	Action string
	Limit  int
}

// List returns the newest entries first.
func (l *Log) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	query := `SELECT id, user_id, action, details, created_at FROM activity_log WHERE 1 = 1`
	var args []any
	if f.UserID > 0 {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, f.Limit)

	var rows []entryRow
	if err := dbx.Select(ctx, l.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			ID:        r.ID,
			UserID:    r.UserID,
			Action:    r.Action,
			Details:   r.Details,
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return out, nil
}
