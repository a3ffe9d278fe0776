// Package orders turns a patient's cart into an order, adjusting stock in the
// same transaction, and runs the order status machine afterwards.
package orders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/prescriptions"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

const defaultTxTimeout = 10 * time.Second

type Config struct {
	// RequirePrescriptionApproval gates prescription-linked medicines at checkout.
	RequirePrescriptionApproval bool
	// TxTimeout bounds a checkout or cancel once it has started.
	TxTimeout time.Duration
}

type Engine struct {
	db     *dbx.DB
	ledger *inventory.Ledger
	log    *activity.Log
	events *events.Emitter
	cfg    Config
	now    func() time.Time
}

func NewEngine(db *dbx.DB, ledger *inventory.Ledger, log *activity.Log, emitter *events.Emitter, cfg Config) *Engine {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	return &Engine{db: db, ledger: ledger, log: log, events: emitter, cfg: cfg, now: time.Now}
}

// Checkout converts the patient's cart into a Pending order. Either the order,
// its items, the stock decrements and the emptied cart all commit, or nothing
// does. Once started it is not cut short by the caller's cancellation.
func (e *Engine) Checkout(ctx context.Context, actor session.Actor, patientID int64) (Order, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return Order{}, err
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TxTimeout)
	defer cancel()

	var order Order
	err := e.db.InTx(txCtx, func(tx dbx.Queryer) error {
		lines, err := cart.Snapshot(txCtx, tx, patientID, true)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.WithMetadata(apperr.CodeEmptyCart,
				fmt.Sprintf("patient %d has an empty cart", patientID),
				map[string]string{"patient_id": strconv.FormatInt(patientID, 10)})
		}
		wanted := mergeLines(lines)

		if e.cfg.RequirePrescriptionApproval {
			for _, it := range wanted {
				if err := prescriptions.CheckDispensable(txCtx, tx, patientID, it.MedicineID); err != nil {
					return err
				}
			}
		}

		locked, err := reserveAll(txCtx, tx, e.ledger, wanted)
		if err != nil {
			return err
		}

		created := e.now().UTC()
		orderID, err := insertOrder(txCtx, tx, patientID, created.UnixMilli())
		if err != nil {
			return err
		}

		var total money.Cents
		items := make([]Item, 0, len(wanted))
		for _, it := range wanted {
			price := locked[it.MedicineID].PriceCents
			item := Item{
				OrderID:       orderID,
				MedicineID:    it.MedicineID,
				Quantity:      it.Quantity,
				UnitPrice:     price,
				SubtotalCents: price * money.Cents(it.Quantity),
			}
			if item.ID, err = insertItem(txCtx, tx, item); err != nil {
				return err
			}
			if err := e.ledger.Decrement(txCtx, tx, it.MedicineID, it.Quantity); err != nil {
				return err
			}
			total += item.SubtotalCents
			items = append(items, item)
		}

		if err := setTotal(txCtx, tx, orderID, total); err != nil {
			return err
		}
		cleared, err := cart.Clear(txCtx, tx, patientID)
		if err != nil {
			return err
		}
		if cleared != int64(len(lines)) {
			return apperr.WithMetadata(apperr.CodeConflict,
				fmt.Sprintf("cart of patient %d changed during checkout", patientID),
				map[string]string{"patient_id": strconv.FormatInt(patientID, 10)})
		}

		order = Order{
			ID:            orderID,
			PatientID:     patientID,
			Status:        StatusPending,
			PaymentStatus: PaymentUnpaid,
			TotalCents:    total,
			CreatedAt:     time.UnixMilli(created.UnixMilli()).UTC(),
			Items:         items,
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	e.afterCheckout(ctx, actor, order)
	return order, nil
}

func (e *Engine) afterCheckout(ctx context.Context, actor session.Actor, order Order) {
	entries := []activity.Entry{
		activity.New(actor.UserID, activity.ActionOrderCreated,
			"order %d for patient %d: %d items, total %s", order.ID, order.PatientID, len(order.Items), order.TotalCents),
	}
	prices := make([]events.ItemPrice, 0, len(order.Items))
	for _, it := range order.Items {
		entries = append(entries, activity.New(actor.UserID, activity.ActionStockDecremented,
			"medicine %d -%d for order %d", it.MedicineID, it.Quantity, order.ID))
		prices = append(prices, events.ItemPrice{
			MedicineID:     it.MedicineID,
			Quantity:       it.Quantity,
			UnitPriceCents: int64(it.UnitPrice),
		})
	}
	e.log.Record(ctx, entries...)

	e.events.Emit(ctx, events.TopicOrderCreated, events.EventOrderCreated, order.ID, events.OrderCreatedPayload{
		OrderID:    order.ID,
		PatientID:  order.PatientID,
		Items:      prices,
		TotalCents: int64(order.TotalCents),
	})
}

// Advance moves an order along the status machine. Cancelled is routed
// through Cancel so stock is restored.
func (e *Engine) Advance(ctx context.Context, actor session.Actor, orderID int64, next Status) (Order, error) {
	if err := actor.Require(session.RolePharmacist, session.RoleClerk, session.RoleAdmin); err != nil {
		return Order{}, err
	}
	if !next.Valid() {
		return Order{}, apperr.Newf(apperr.CodeValidation, "unknown order status %q", next)
	}
	if next == StatusCancelled {
		return e.Cancel(ctx, actor, orderID)
	}

	var (
		order Order
		from  Status
	)
	err := e.db.InTx(ctx, func(tx dbx.Queryer) error {
		o, err := Lookup(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(o.Status, next) {
			return invalidTransition(orderID, o.Status, next)
		}
		ok, err := setStatus(ctx, tx, orderID, o.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return invalidTransition(orderID, o.Status, next)
		}
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	e.statusChanged(ctx, actor, orderID, from, next)
	return order, nil
}

// Cancel cancels a Pending or Processing order and restores the stock of
// every item in the same transaction. An Unpaid invoice for the order is
// cancelled with it; a paid or partially paid one blocks cancellation.
func (e *Engine) Cancel(ctx context.Context, actor session.Actor, orderID int64) (Order, error) {
	if err := actor.Require(session.RolePharmacist, session.RoleClerk, session.RoleAdmin); err != nil {
		return Order{}, err
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TxTimeout)
	defer cancel()

	var (
		order Order
		from  Status
	)
	err := e.db.InTx(txCtx, func(tx dbx.Queryer) error {
		o, err := Lookup(txCtx, tx, orderID, true)
		if err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(o.Status, StatusCancelled) {
			return invalidTransition(orderID, o.Status, StatusCancelled)
		}
		if o.PaymentStatus == PaymentPaid {
			return apperr.WithMetadata(apperr.CodeAlreadyFinalized,
				fmt.Sprintf("order %d is paid", orderID),
				map[string]string{"order_id": strconv.FormatInt(orderID, 10)})
		}

		inv, err := lockLinkedInvoice(txCtx, tx, orderID)
		if err != nil {
			return err
		}
		if inv != nil {
			if inv.Status != invoiceUnpaid {
				return apperr.WithMetadata(apperr.CodeAlreadyFinalized,
					fmt.Sprintf("invoice %d of order %d is %s", inv.ID, orderID, inv.Status),
					map[string]string{
						"order_id":   strconv.FormatInt(orderID, 10),
						"invoice_id": strconv.FormatInt(inv.ID, 10),
					})
			}
			if err := cancelInvoice(txCtx, tx, inv.ID); err != nil {
				return err
			}
		}

		items, err := Items(txCtx, tx, orderID)
		if err != nil {
			return err
		}
		if err := releaseAll(txCtx, tx, e.ledger, items); err != nil {
			return err
		}
		if _, err := setStatus(txCtx, tx, orderID, o.Status, StatusCancelled); err != nil {
			return err
		}
		if err := MarkPaymentStatus(txCtx, tx, orderID, PaymentUnpaid); err != nil {
			return err
		}

		o.Status = StatusCancelled
		o.PaymentStatus = PaymentUnpaid
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	entries := []activity.Entry{activity.New(actor.UserID, activity.ActionOrderCancelled, "order %d from %s", orderID, from)}
	for _, it := range order.Items {
		entries = append(entries, activity.New(actor.UserID, activity.ActionStockRestored,
			"medicine %d +%d from order %d", it.MedicineID, it.Quantity, orderID))
	}
	e.log.Record(ctx, entries...)
	e.events.Emit(ctx, events.TopicOrderStatusChanged, events.EventOrderStatusChanged, orderID, events.OrderStatusChangedPayload{
		OrderID: orderID,
		From:    string(from),
		To:      string(StatusCancelled),
	})
	return order, nil
}

func (e *Engine) statusChanged(ctx context.Context, actor session.Actor, orderID int64, from, to Status) {
	e.log.Record(ctx, activity.New(actor.UserID, activity.ActionOrderStatusChanged, "order %d %s -> %s", orderID, from, to))
	e.events.Emit(ctx, events.TopicOrderStatusChanged, events.EventOrderStatusChanged, orderID, events.OrderStatusChangedPayload{
		OrderID: orderID,
		From:    string(from),
		To:      string(to),
	})
}

// Get returns an order with its items.
func (e *Engine) Get(ctx context.Context, actor session.Actor, orderID int64) (Order, error) {
	o, err := Lookup(ctx, e.db, orderID, false)
	if err != nil {
		return Order{}, err
	}
	if err := actor.RequireFor(o.PatientID); err != nil {
		return Order{}, err
	}
	if o.Items, err = Items(ctx, e.db, orderID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Status returns just the order status, as served to polling clients.
func (e *Engine) Status(ctx context.Context, actor session.Actor, orderID int64) (Status, error) {
	o, err := Lookup(ctx, e.db, orderID, false)
	if err != nil {
		return "", err
	}
	if err := actor.RequireFor(o.PatientID); err != nil {
		return "", err
	}
	return o.Status, nil
}

// ListByPatient returns the patient's orders, newest first, without items.
func (e *Engine) ListByPatient(ctx context.Context, actor session.Actor, patientID int64) ([]Order, error) {
	if err := actor.RequireFor(patientID); err != nil {
		return nil, err
	}
	return listByPatient(ctx, e.db, patientID)
}

func invalidTransition(orderID int64, from, to Status) error {
	return apperr.WithMetadata(apperr.CodeInvalidTransition,
		fmt.Sprintf("order %d cannot go from %s to %s", orderID, from, to),
		map[string]string{
			"order_id": strconv.FormatInt(orderID, 10),
			"from":     string(from),
			"to":       string(to),
		})
}
