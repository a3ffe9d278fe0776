package billing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/billing"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/orders"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

var clerk = session.Actor{UserID: 900, Role: session.RoleClerk}

type fixture struct {
	db     *dbx.DB
	gen    *billing.Generator
	engine *orders.Engine
	carts  *cart.Store
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	log := activity.NewLog(db.DB)
	rec := &events.Recorder{}
	emitter := &events.Emitter{Publisher: rec, Producer: "test"}
	return &fixture{
		db:     db,
		gen:    billing.NewGenerator(db, log, emitter, billing.DefaultTaxRate),
		engine: orders.NewEngine(db, inventory.NewLedger(db, log), log, emitter, orders.Config{}),
		carts:  cart.NewStore(db, log),
		events: rec,
	}
}

// order checks out a one-line order worth total for patient 1.
func (f *fixture) order(t *testing.T, total money.Cents) orders.Order {
	t.Helper()
	ctx := context.Background()
	p := session.Actor{UserID: 1, Role: session.RolePatient}
	med := dbtest.Medicine(t, f.db.DB, "Losartan", int64(total), 5)
	_, err := f.carts.AddOrIncrement(ctx, p, 1, med, 1)
	require.NoError(t, err)
	o, err := f.engine.Checkout(ctx, p, 1)
	require.NoError(t, err)
	return o
}

func paymentStatus(t *testing.T, f *fixture, orderID int64) orders.PaymentStatus {
	t.Helper()
	o, err := orders.Lookup(context.Background(), f.db, orderID, false)
	require.NoError(t, err)
	return o.PaymentStatus
}

func TestTax(t *testing.T) {
	g := billing.NewGenerator(nil, nil, nil, billing.DefaultTaxRate)
	assert.EqualValues(t, 12000, g.Tax(100000))
	assert.EqualValues(t, 1, g.Tax(5)) // 0.006 rounds up
	assert.EqualValues(t, 0, g.Tax(4)) // 0.0048 rounds down
	assert.EqualValues(t, 66, g.Tax(550))

	g = billing.NewGenerator(nil, nil, nil, decimal.RequireFromString("0.05"))
	assert.EqualValues(t, 5000, g.Tax(100000))

	g = billing.NewGenerator(nil, nil, nil, decimal.Zero)
	assert.EqualValues(t, 0, g.Tax(100000))
}

func TestFromOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)

	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{8}$`, inv.Number)
	assert.EqualValues(t, 100000, inv.SubtotalCents)
	assert.EqualValues(t, 12000, inv.TaxCents)
	assert.EqualValues(t, 112000, inv.TotalCents)
	assert.Equal(t, billing.StatusUnpaid, inv.Status)
	require.NotNil(t, inv.OrderID)
	assert.Equal(t, o.ID, *inv.OrderID)
	assert.Equal(t, orders.PaymentInvoiced, paymentStatus(t, f, o.ID))

	_, err = f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.ErrorIs(t, err, apperr.ErrAlreadyInvoiced)
	_, err = f.gen.FromOrder(ctx, clerk, 999, 0)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, dbtest.Count(t, f.db.DB, "invoices"))

	got, err := f.gen.GetByNumber(ctx, clerk, inv.Number)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Contains(t, f.events.Topics(), events.TopicInvoiceCreated)
}

func TestFromOrderDiscount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)

	_, err := f.gen.FromOrder(ctx, clerk, o.ID, 112001)
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	_, err = f.gen.FromOrder(ctx, clerk, o.ID, -1)
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	assert.Equal(t, orders.PaymentUnpaid, paymentStatus(t, f, o.ID))

	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 2000)
	require.NoError(t, err)
	assert.EqualValues(t, 110000, inv.TotalCents)
	assert.Equal(t, inv.TotalCents, inv.SubtotalCents+inv.TaxCents-inv.DiscountCents)
}

func TestFromCancelledOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	_, err := f.engine.Cancel(ctx, clerk, o.ID)
	require.NoError(t, err)

	_, err = f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCreateManual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.gen.CreateManual(ctx, clerk, 1, 0, 0)
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	_, err = f.gen.CreateManual(ctx, clerk, 1, -500, 0)
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	_, err = f.gen.CreateManual(ctx, session.Actor{UserID: 1, Role: session.RolePatient}, 1, 500, 0)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	inv, err := f.gen.CreateManual(ctx, clerk, 1, 550, 0)
	require.NoError(t, err)
	assert.Nil(t, inv.OrderID)
	assert.EqualValues(t, 616, inv.TotalCents)

	list, err := f.gen.ListByPatient(ctx, clerk, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPartialPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)

	_, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 0})
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)

	inv, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 50000, Method: "GCash", Reference: "GC-1"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPartiallyPaid, inv.Status)
	assert.EqualValues(t, 50000, inv.AmountPaidCents)
	assert.Equal(t, "GCash", inv.PaymentMethod)
	assert.NotNil(t, inv.PaymentDate)
	assert.Equal(t, orders.PaymentInvoiced, paymentStatus(t, f, o.ID))

	_, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 62100})
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = f.gen.Cancel(ctx, clerk, inv.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	inv, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 62000})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, inv.Status)
	assert.EqualValues(t, 112000, inv.AmountPaidCents)
	assert.Equal(t, "Cash", inv.PaymentMethod)
	assert.Equal(t, orders.PaymentPaid, paymentStatus(t, f, o.ID))

	_, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 1})
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	_, err = f.gen.Cancel(ctx, clerk, inv.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	_, err = f.engine.Cancel(ctx, clerk, o.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	assert.Contains(t, f.events.Topics(), events.TopicInvoicePaid)
}

// Two clerks record 600.00 each against a 1120.00 invoice at once. Payments
// on one invoice serialize, so only the first fits what is due.
func TestConcurrentPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			_, results[i] = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 60000})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, rejected int
	for _, err := range results {
		switch code := apperr.CodeOf(err); {
		case err == nil:
			ok++
		case code == apperr.CodeInvalidAmount, code == apperr.CodeConflict:
			rejected++
		default:
			t.Fatalf("unexpected payment error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	got, err := f.gen.Get(ctx, clerk, inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 60000, got.AmountPaidCents)
	assert.Equal(t, billing.StatusPartiallyPaid, got.Status)
}

func TestCancelInvoiceAllowsReinvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)

	cancelled, err := f.gen.Cancel(ctx, clerk, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, cancelled.Status)
	assert.Equal(t, orders.PaymentUnpaid, paymentStatus(t, f, o.ID))

	_, err = f.gen.Cancel(ctx, clerk, inv.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	_, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 100})
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	again, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)
	assert.NotEqual(t, inv.Number, again.Number)
}

func TestOrderCancelVoidsUnpaidInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, clerk, o.ID)
	require.NoError(t, err)

	got, err := f.gen.Get(ctx, clerk, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, got.Status)
}

func TestOrderCancelBlockedByPartialPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 100000)
	inv, err := f.gen.FromOrder(ctx, clerk, o.ID, 0)
	require.NoError(t, err)
	_, err = f.gen.RecordPayment(ctx, clerk, inv.ID, billing.Payment{AmountCents: 100})
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, clerk, o.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	assert.EqualValues(t, 4, dbtest.Stock(t, f.db.DB, o.Items[0].MedicineID))
}

func TestGetOwnInvoiceOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.gen.CreateManual(ctx, clerk, 1, 550, 0)
	require.NoError(t, err)

	_, err = f.gen.Get(ctx, session.Actor{UserID: 1, Role: session.RolePatient}, inv.ID)
	require.NoError(t, err)
	_, err = f.gen.Get(ctx, session.Actor{UserID: 2, Role: session.RolePatient}, inv.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.gen.Get(ctx, clerk, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
