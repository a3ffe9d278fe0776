package billing

import (
	"database/sql"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
)

type Status string

const (
	StatusUnpaid        Status = "Unpaid"
	StatusPartiallyPaid Status = "Partially Paid"
	StatusPaid          Status = "Paid"
	StatusCancelled     Status = "Cancelled"
)

// Final reports whether the invoice accepts no further payments or cancellation.
func (s Status) Final() bool {
	return s == StatusPaid || s == StatusCancelled
}

type Invoice struct {
	ID               int64       `json:"id"`
	Number           string      `json:"invoice_number"`
	PatientID        int64       `json:"patient_id"`
	OrderID          *int64      `json:"order_id,omitempty"`
	SubtotalCents    money.Cents `json:"subtotal_cents"`
	TaxCents         money.Cents `json:"tax_cents"`
	DiscountCents    money.Cents `json:"discount_cents"`
	TotalCents       money.Cents `json:"total_amount_cents"`
	AmountPaidCents  money.Cents `json:"amount_paid_cents"`
	Status           Status      `json:"status"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	PaymentDate      *time.Time  `json:"payment_date,omitempty"`
	CreatedBy        int64       `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Due is what remains to be paid.
func (inv Invoice) Due() money.Cents {
	return inv.TotalCents - inv.AmountPaidCents
}

const invoiceColumns = `id, invoice_number, patient_id, order_id, subtotal, tax, discount, total_amount, amount_paid,
       status, payment_method, payment_reference, payment_date, created_by, created_at`

type invoiceRow struct {
	ID               int64         `db:"id"`
	InvoiceNumber    string        `db:"invoice_number"`
	PatientID        int64         `db:"patient_id"`
	OrderID          sql.NullInt64 `db:"order_id"`
	Subtotal         int64         `db:"subtotal"`
	Tax              int64         `db:"tax"`
	Discount         int64         `db:"discount"`
	TotalAmount      int64         `db:"total_amount"`
	AmountPaid       int64         `db:"amount_paid"`
	Status           string        `db:"status"`
	PaymentMethod    string        `db:"payment_method"`
	PaymentReference string        `db:"payment_reference"`
	PaymentDate      sql.NullInt64 `db:"payment_date"`
	CreatedBy        int64         `db:"created_by"`
	CreatedAt        int64         `db:"created_at"`
}

func (r invoiceRow) toInvoice() Invoice {
	inv := Invoice{
		ID:               r.ID,
		Number:           r.InvoiceNumber,
		PatientID:        r.PatientID,
		SubtotalCents:    money.Cents(r.Subtotal),
		TaxCents:         money.Cents(r.Tax),
		DiscountCents:    money.Cents(r.Discount),
		TotalCents:       money.Cents(r.TotalAmount),
		AmountPaidCents:  money.Cents(r.AmountPaid),
		Status:           Status(r.Status),
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.OrderID.Valid {
		id := r.OrderID.Int64
		inv.OrderID = &id
	}
	if r.PaymentDate.Valid {
		t := time.UnixMilli(r.PaymentDate.Int64).UTC()
		inv.PaymentDate = &t
	}
	return inv
}
