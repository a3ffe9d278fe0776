package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

func TestCheckTotals(t *testing.T) {
	ok := Invoice{SubtotalCents: 1000, TaxCents: 120, DiscountCents: 20, TotalCents: 1100}
	if err := checkTotals(ok); err != nil {
		t.Fatalf("checkTotals(ok) = %v", err)
	}
	bad := ok
	bad.TotalCents = 1101
	if err := checkTotals(bad); !errors.Is(err, apperr.ErrInvariantViolation) {
		t.Fatalf("checkTotals(bad total) = %v", err)
	}
	overpaid := ok
	overpaid.AmountPaidCents = 1101
	if err := checkTotals(overpaid); !errors.Is(err, apperr.ErrInvariantViolation) {
		t.Fatalf("checkTotals(overpaid) = %v", err)
	}
}

func TestNumberCollisionRerolls(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	g := NewGenerator(db, nil, nil, DefaultTaxRate)
	clerk := session.Actor{UserID: 9, Role: session.RoleClerk}

	numbers := []string{"INV-20261014-AAAAAAAA", "INV-20261014-AAAAAAAA", "INV-20261014-BBBBBBBB"}
	calls := 0
	g.number = func(time.Time) string {
		n := numbers[calls]
		calls++
		return n
	}

	if _, err := g.CreateManual(ctx, clerk, 1, 100, 0); err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	inv, err := g.CreateManual(ctx, clerk, 1, 100, 0)
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if inv.Number != "INV-20261014-BBBBBBBB" || calls != 3 {
		t.Fatalf("got %s after %d draws", inv.Number, calls)
	}
}

func TestNumberCollisionGivesUp(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	g := NewGenerator(db, nil, nil, DefaultTaxRate)
	clerk := session.Actor{UserID: 9, Role: session.RoleClerk}
	g.number = func(time.Time) string { return "INV-20261014-AAAAAAAA" }

	if _, err := g.CreateManual(ctx, clerk, 1, 100, 0); err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	_, err := g.CreateManual(ctx, clerk, 1, 100, 0)
	if !errors.Is(err, apperr.ErrDuplicateInvoiceNumber) {
		t.Fatalf("err = %v, want DUPLICATE_INVOICE_NUMBER", err)
	}
	if n := dbtest.Count(t, db.DB, "invoices"); n != 1 {
		t.Fatalf("invoices = %d, want 1", n)
	}
}
