package orders

import (
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
)

type Order struct {
	ID            int64         `json:"id"`
	PatientID     int64         `json:"patient_id"`
	Status        Status        `json:"status"` // see status.go
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalCents    money.Cents   `json:"total_amount_cents"`
	CreatedAt     time.Time     `json:"order_date"`
	Items         []Item        `json:"items,omitempty"`
}

// Item is an immutable order line priced at purchase time.
type Item struct {
	ID            int64       `json:"id"`
	OrderID       int64       `json:"order_id"`
	MedicineID    int64       `json:"medicine_id"`
	Quantity      int64       `json:"quantity"`
	UnitPrice     money.Cents `json:"unit_price_cents"`
	SubtotalCents money.Cents `json:"subtotal_cents"`
}

type ItemQty struct {
	MedicineID int64
	Quantity   int64
}

type orderRow struct {
	ID            int64  `db:"id"`
	PatientID     int64  `db:"patient_id"`
	Status        string `db:"status"`
	PaymentStatus string `db:"payment_status"`
	TotalAmount   int64  `db:"total_amount"`
	OrderDate     int64  `db:"order_date"`
}

func (r orderRow) toOrder() Order {
	return Order{
		ID:            r.ID,
		PatientID:     r.PatientID,
		Status:        Status(r.Status),
		PaymentStatus: PaymentStatus(r.PaymentStatus),
		TotalCents:    money.Cents(r.TotalAmount),
		CreatedAt:     time.UnixMilli(r.OrderDate).UTC(),
	}
}

type itemRow struct {
	ID         int64 `db:"id"`
	OrderID    int64 `db:"order_id"`
	MedicineID int64 `db:"medicine_id"`
	Quantity   int64 `db:"quantity"`
	UnitPrice  int64 `db:"unit_price"`
	Subtotal   int64 `db:"subtotal"`
}

func (r itemRow) toItem() Item {
	return Item{
		ID:            r.ID,
		OrderID:       r.OrderID,
		MedicineID:    r.MedicineID,
		Quantity:      r.Quantity,
		UnitPrice:     money.Cents(r.UnitPrice),
		SubtotalCents: money.Cents(r.Subtotal),
	}
}
