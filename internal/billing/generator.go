// Package billing creates invoices from orders or by hand, keeps the total
// identity (total = subtotal + tax - discount) on every write, and records
// payments against them.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/orders"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// DefaultTaxRate is the VAT applied to every invoice.
var DefaultTaxRate = decimal.RequireFromString("0.12")

const maxNumberAttempts = 5

var errNumberTaken = errors.New("invoice number taken")

type Generator struct {
	db     *dbx.DB
	log    *activity.Log
	events *events.Emitter
	rate   decimal.Decimal
	now    func() time.Time
	number func(time.Time) string
}

// NewGenerator returns a Generator taxing at rate. A zero rate issues
// tax-free invoices.
func NewGenerator(db *dbx.DB, log *activity.Log, emitter *events.Emitter, rate decimal.Decimal) *Generator {
	return &Generator{db: db, log: log, events: emitter, rate: rate, now: time.Now, number: NewNumber}
}

// NewNumber formats INV-YYYYMMDD-XXXXXXXX.
func NewNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "INV-" + t.UTC().Format("20060102") + "-" + suffix
}

// Tax is subtotal times the rate, rounded half away from zero to the centavo.
func (g *Generator) Tax(subtotal money.Cents) money.Cents {
	return money.ApplyRate(subtotal, g.rate)
}

func checkTotals(inv Invoice) error {
	if inv.TotalCents != inv.SubtotalCents+inv.TaxCents-inv.DiscountCents {
		return apperr.WithMetadata(apperr.CodeInvariantViolation,
			fmt.Sprintf("invoice total %s != %s + %s - %s", inv.TotalCents, inv.SubtotalCents, inv.TaxCents, inv.DiscountCents),
			map[string]string{"invoice_number": inv.Number})
	}
	if inv.AmountPaidCents < 0 || inv.AmountPaidCents > inv.TotalCents {
		return apperr.WithMetadata(apperr.CodeInvariantViolation,
			fmt.Sprintf("invoice paid %s outside 0..%s", inv.AmountPaidCents, inv.TotalCents),
			map[string]string{"invoice_number": inv.Number})
	}
	return nil
}

func (g *Generator) draft(actor session.Actor, patientID int64, orderID *int64, subtotal, discount money.Cents) (Invoice, error) {
	tax := g.Tax(subtotal)
	if discount < 0 || discount > subtotal+tax {
		return Invoice{}, apperr.WithMetadata(apperr.CodeInvalidAmount,
			fmt.Sprintf("discount %s must be between 0 and %s", discount, subtotal+tax),
			map[string]string{"discount": discount.String()})
	}
	return Invoice{
		PatientID:     patientID,
		OrderID:       orderID,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		DiscountCents: discount,
		TotalCents:    subtotal + tax - discount,
		Status:        StatusUnpaid,
		CreatedBy:     actor.UserID,
		CreatedAt:     time.UnixMilli(g.now().UnixMilli()).UTC(),
	}, nil
}

func (g *Generator) insert(ctx context.Context, q dbx.Queryer, inv *Invoice) error {
	inv.Number = g.number(inv.CreatedAt)
	if err := checkTotals(*inv); err != nil {
		return err
	}
	id, err := dbx.InsertID(ctx, q,
		`INSERT INTO invoices (invoice_number, patient_id, order_id, subtotal, tax, discount, total_amount,
		                       amount_paid, status, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?) RETURNING id`,
		inv.Number, inv.PatientID, inv.OrderID, int64(inv.SubtotalCents), int64(inv.TaxCents), int64(inv.DiscountCents),
		int64(inv.TotalCents), string(inv.Status), inv.CreatedBy, inv.CreatedAt.UnixMilli())
	switch {
	case err == nil:
		inv.ID = id
		return nil
	case dbx.IsUniqueViolation(err, "invoice_number"):
		return errNumberTaken
	case dbx.IsUniqueViolation(err, "order_id"):
		return alreadyInvoiced(*inv.OrderID)
	default:
		return fmt.Errorf("insert invoice: %w", err)
	}
}

// create runs build in a fresh transaction per attempt, re-rolling the
// invoice number when it collides. Postgres aborts a transaction on a failed
// statement, so each attempt starts over.
func (g *Generator) create(ctx context.Context, build func(tx dbx.Queryer) (Invoice, error)) (Invoice, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		var inv Invoice
		err := g.db.InTx(ctx, func(tx dbx.Queryer) error {
			var err error
			inv, err = build(tx)
			return err
		})
		if errors.Is(err, errNumberTaken) {
			continue
		}
		if err != nil {
			return Invoice{}, err
		}
		return inv, nil
	}
	return Invoice{}, apperr.Newf(apperr.CodeDuplicateInvoiceNumber,
		"no unique invoice number after %d attempts", maxNumberAttempts)
}

// FromOrder invoices an order at its stored total. An order is invoiced at
// most once while its invoice stands.
func (g *Generator) FromOrder(ctx context.Context, actor session.Actor, orderID int64, discount money.Cents) (Invoice, error) {
	if err := actor.Require(session.RoleClerk, session.RoleAdmin, session.RoleSystem); err != nil {
		return Invoice{}, err
	}
	inv, err := g.create(ctx, func(tx dbx.Queryer) (Invoice, error) {
		o, err := orders.Lookup(ctx, tx, orderID, true)
		if err != nil {
			return Invoice{}, err
		}
		if o.Status == orders.StatusCancelled {
			return Invoice{}, apperr.WithMetadata(apperr.CodeInvalidTransition,
				fmt.Sprintf("order %d is cancelled", orderID),
				map[string]string{"order_id": strconv.FormatInt(orderID, 10)})
		}
		if o.PaymentStatus != orders.PaymentUnpaid {
			return Invoice{}, alreadyInvoiced(orderID)
		}
		inv, err := g.draft(actor, o.PatientID, &orderID, o.TotalCents, discount)
		if err != nil {
			return Invoice{}, err
		}
		if err := g.insert(ctx, tx, &inv); err != nil {
			return Invoice{}, err
		}
		if err := orders.MarkPaymentStatus(ctx, tx, orderID, orders.PaymentInvoiced); err != nil {
			return Invoice{}, err
		}
		return inv, nil
	})
	if err != nil {
		return Invoice{}, err
	}
	g.created(ctx, actor, inv)
	return inv, nil
}

// CreateManual invoices a walk-in sale with no order behind it.
func (g *Generator) CreateManual(ctx context.Context, actor session.Actor, patientID int64, subtotal, discount money.Cents) (Invoice, error) {
	if err := actor.Require(session.RoleClerk, session.RoleAdmin); err != nil {
		return Invoice{}, err
	}
	if subtotal <= 0 {
		return Invoice{}, apperr.WithMetadata(apperr.CodeInvalidAmount,
			fmt.Sprintf("subtotal %s must be positive", subtotal),
			map[string]string{"subtotal": subtotal.String()})
	}
	if patientID <= 0 {
		return Invoice{}, apperr.New(apperr.CodeValidation, "patient_id is required")
	}
	inv, err := g.create(ctx, func(tx dbx.Queryer) (Invoice, error) {
		inv, err := g.draft(actor, patientID, nil, subtotal, discount)
		if err != nil {
			return Invoice{}, err
		}
		if err := g.insert(ctx, tx, &inv); err != nil {
			return Invoice{}, err
		}
		return inv, nil
	})
	if err != nil {
		return Invoice{}, err
	}
	g.created(ctx, actor, inv)
	return inv, nil
}

func (g *Generator) created(ctx context.Context, actor session.Actor, inv Invoice) {
	g.log.Record(ctx, activity.New(actor.UserID, activity.ActionInvoiceCreated,
		"invoice %s for patient %d total %s", inv.Number, inv.PatientID, inv.TotalCents))
	g.events.Emit(ctx, events.TopicInvoiceCreated, events.EventInvoiceCreated, inv.ID, payload(inv))
}

// Payment is one tender against an invoice.
type Payment struct {
	AmountCents money.Cents `json:"amount_cents"`
	Method      string      `json:"method"`
	Reference   string      `json:"reference"`
}

// RecordPayment applies a payment. Payments accumulate: the invoice is Paid
// once amount paid reaches the total and Partially Paid before that. A
// payment larger than what is due is rejected.
func (g *Generator) RecordPayment(ctx context.Context, actor session.Actor, invoiceID int64, p Payment) (Invoice, error) {
	if err := actor.Require(session.RoleClerk, session.RoleAdmin); err != nil {
		return Invoice{}, err
	}
	if p.AmountCents <= 0 {
		return Invoice{}, apperr.WithMetadata(apperr.CodeInvalidAmount,
			fmt.Sprintf("payment %s must be positive", p.AmountCents),
			map[string]string{"amount": p.AmountCents.String()})
	}
	p.Method = strings.TrimSpace(p.Method)
	if p.Method == "" {
		p.Method = "Cash"
	}

	var inv Invoice
	err := g.db.InTx(ctx, func(tx dbx.Queryer) error {
		cur, err := lookup(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if cur.Status.Final() {
			return alreadyFinalized(cur)
		}
		if p.AmountCents > cur.Due() {
			return apperr.WithMetadata(apperr.CodeInvalidAmount,
				fmt.Sprintf("payment %s exceeds amount due %s", p.AmountCents, cur.Due()),
				map[string]string{"amount": p.AmountCents.String(), "due": cur.Due().String()})
		}

		next := cur
		next.AmountPaidCents += p.AmountCents
		next.Status = StatusPartiallyPaid
		if next.AmountPaidCents == next.TotalCents {
			next.Status = StatusPaid
		}
		paidAt := time.UnixMilli(g.now().UnixMilli()).UTC()
		next.PaymentMethod = p.Method
		next.PaymentReference = strings.TrimSpace(p.Reference)
		next.PaymentDate = &paidAt
		if err := checkTotals(next); err != nil {
			return err
		}

		// amount_paid must still be what was read; concurrent payments on
		// SQLite, where there is no row lock, fall out here.
		n, err := dbx.Exec(ctx, tx,
			`UPDATE invoices SET amount_paid = ?, status = ?, payment_method = ?, payment_reference = ?, payment_date = ?
			  WHERE id = ? AND amount_paid = ?`,
			int64(next.AmountPaidCents), string(next.Status), next.PaymentMethod, next.PaymentReference, paidAt.UnixMilli(),
			invoiceID, int64(cur.AmountPaidCents))
		if err != nil {
			return fmt.Errorf("record payment on invoice %d: %w", invoiceID, err)
		}
		if n == 0 {
			return apperr.WithMetadata(apperr.CodeConflict,
				fmt.Sprintf("invoice %d changed during payment", invoiceID),
				map[string]string{"invoice_id": strconv.FormatInt(invoiceID, 10)})
		}
		if next.Status == StatusPaid && next.OrderID != nil {
			if err := orders.MarkPaymentStatus(ctx, tx, *next.OrderID, orders.PaymentPaid); err != nil {
				return err
			}
		}
		inv = next
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	g.log.Record(ctx, activity.New(actor.UserID, activity.ActionPaymentRecorded,
		"invoice %s paid %s by %s, %s of %s", inv.Number, p.AmountCents, inv.PaymentMethod, inv.AmountPaidCents, inv.TotalCents))
	if inv.Status == StatusPaid {
		g.events.Emit(ctx, events.TopicInvoicePaid, events.EventInvoicePaid, inv.ID, payload(inv))
	}
	return inv, nil
}

// Cancel voids an Unpaid invoice and returns its order to Unpaid so it can be
// invoiced again.
func (g *Generator) Cancel(ctx context.Context, actor session.Actor, invoiceID int64) (Invoice, error) {
	if err := actor.Require(session.RoleClerk, session.RoleAdmin); err != nil {
		return Invoice{}, err
	}
	var inv Invoice
	err := g.db.InTx(ctx, func(tx dbx.Queryer) error {
		cur, err := lookup(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if cur.Status != StatusUnpaid {
			return alreadyFinalized(cur)
		}
		n, err := dbx.Exec(ctx, tx, `UPDATE invoices SET status = ? WHERE id = ? AND status = ?`,
			string(StatusCancelled), invoiceID, string(StatusUnpaid))
		if err != nil {
			return fmt.Errorf("cancel invoice %d: %w", invoiceID, err)
		}
		if n == 0 {
			return alreadyFinalized(cur)
		}
		if cur.OrderID != nil {
			if err := orders.MarkPaymentStatus(ctx, tx, *cur.OrderID, orders.PaymentUnpaid); err != nil {
				return err
			}
		}
		cur.Status = StatusCancelled
		inv = cur
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	g.log.Record(ctx, activity.New(actor.UserID, activity.ActionInvoiceCancelled, "invoice %s", inv.Number))
	return inv, nil
}

// Get returns an invoice. Patients may read only their own.
func (g *Generator) Get(ctx context.Context, actor session.Actor, invoiceID int64) (Invoice, error) {
	inv, err := lookup(ctx, g.db, invoiceID, false)
	if err != nil {
		return Invoice{}, err
	}
	if err := actor.RequireFor(inv.PatientID); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (g *Generator) GetByNumber(ctx context.Context, actor session.Actor, number string) (Invoice, error) {
	var row invoiceRow
	err := dbx.Get(ctx, g.db, &row, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ?`, strings.TrimSpace(number))
	if err != nil {
		if dbx.IsNoRows(err) {
			return Invoice{}, apperr.WithMetadata(apperr.CodeNotFound,
				fmt.Sprintf("invoice %s not found", number),
				map[string]string{"invoice_number": number})
		}
		return Invoice{}, fmt.Errorf("get invoice %s: %w", number, err)
	}
	inv := row.toInvoice()
	if err := actor.RequireFor(inv.PatientID); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ListByPatient returns a patient's invoices, newest first.
func (g *Generator) ListByPatient(ctx context.Context, actor session.Actor, patientID int64) ([]Invoice, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return nil, err
	}
	var rows []invoiceRow
	if err := dbx.Select(ctx, g.db, &rows,
		`SELECT `+invoiceColumns+` FROM invoices WHERE patient_id = ? ORDER BY id DESC`, patientID); err != nil {
		return nil, fmt.Errorf("list invoices of patient %d: %w", patientID, err)
	}
	out := make([]Invoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toInvoice())
	}
	return out, nil
}

func lookup(ctx context.Context, q dbx.Queryer, invoiceID int64, lock bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	if lock {
		query += dbx.ForUpdate(q)
	}
	var row invoiceRow
	if err := dbx.Get(ctx, q, &row, query, invoiceID); err != nil {
		if dbx.IsNoRows(err) {
			return Invoice{}, apperr.WithMetadata(apperr.CodeNotFound,
				fmt.Sprintf("invoice %d not found", invoiceID),
				map[string]string{"invoice_id": strconv.FormatInt(invoiceID, 10)})
		}
		return Invoice{}, fmt.Errorf("get invoice %d: %w", invoiceID, err)
	}
	return row.toInvoice(), nil
}

func alreadyInvoiced(orderID int64) error {
	return apperr.WithMetadata(apperr.CodeAlreadyInvoiced,
		fmt.Sprintf("order %d is already invoiced", orderID),
		map[string]string{"order_id": strconv.FormatInt(orderID, 10)})
}

func alreadyFinalized(inv Invoice) error {
	return apperr.WithMetadata(apperr.CodeAlreadyFinalized,
		fmt.Sprintf("invoice %s is %s", inv.Number, inv.Status),
		map[string]string{"invoice_id": strconv.FormatInt(inv.ID, 10), "status": string(inv.Status)})
}

func payload(inv Invoice) events.InvoicePayload {
	return events.InvoicePayload{
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		PatientID:       inv.PatientID,
		OrderID:         inv.OrderID,
		TotalCents:      int64(inv.TotalCents),
		AmountPaidCents: int64(inv.AmountPaidCents),
		Status:          string(inv.Status),
	}
}
