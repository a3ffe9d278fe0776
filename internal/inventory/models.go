package inventory

import (
	"database/sql"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
)

const dateLayout = "2006-01-02"

// Medicine is a sellable item. Stock is changed only through the Ledger.
type Medicine struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	PriceCents money.Cents `json:"price_cents"`
	Stock      int64       `json:"stock"`
	ExpiryDate *time.Time  `json:"expiry_date,omitempty"`
	Supplier   string      `json:"supplier"`
}

// NewMedicine is the input for adding a catalog entry.
type NewMedicine struct {
	Name       string
	Category   string
	PriceCents money.Cents
	Stock      int64
	ExpiryDate *time.Time
	Supplier   string
}

const medicineColumns = `id, name, category, price, stock, expiry_date, supplier`

type medicineRow struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Category   string         `db:"category"`
	Price      int64          `db:"price"`
	Stock      int64          `db:"stock"`
	ExpiryDate sql.NullString `db:"expiry_date"`
	Supplier   string         `db:"supplier"`
}

func (r medicineRow) toMedicine() Medicine {
	m := Medicine{
		ID:         r.ID,
		Name:       r.Name,
		Category:   r.Category,
		PriceCents: money.Cents(r.Price),
		Stock:      r.Stock,
		Supplier:   r.Supplier,
	}
	if r.ExpiryDate.Valid {
		if t, err := time.Parse(dateLayout, r.ExpiryDate.String); err == nil {
			m.ExpiryDate = &t
		}
	}
	return m
}

func expiryValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}
