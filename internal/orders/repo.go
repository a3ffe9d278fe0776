package orders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/apperr"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
)

const orderColumns = `id, patient_id, status, payment_status, total_amount, order_date`

func orderNotFound(orderID int64) error {
	return apperr.WithMetadata(apperr.CodeNotFound,
		fmt.Sprintf("order %d not found", orderID),
		map[string]string{"order_id": strconv.FormatInt(orderID, 10)})
}

func insertOrder(ctx context.Context, q dbx.Queryer, patientID int64, createdAtMillis int64) (int64, error) {
	id, err := dbx.InsertID(ctx, q,
		`INSERT INTO orders (patient_id, status, payment_status, total_amount, order_date)
		 VALUES (?, ?, ?, 0, ?) RETURNING id`,
		patientID, string(StatusPending), string(PaymentUnpaid), createdAtMillis)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func insertItem(ctx context.Context, q dbx.Queryer, it Item) (int64, error) {
	id, err := dbx.InsertID(ctx, q,
		`INSERT INTO order_items (order_id, medicine_id, quantity, unit_price, subtotal)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		it.OrderID, it.MedicineID, it.Quantity, int64(it.UnitPrice), int64(it.SubtotalCents))
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func setTotal(ctx context.Context, q dbx.Queryer, orderID int64, total money.Cents) error {
	if _, err := dbx.Exec(ctx, q, `UPDATE orders SET total_amount = ? WHERE id = ?`, int64(total), orderID); err != nil {
		return fmt.Errorf("set order total: %w", err)
	}
	return nil
}

// Lookup reads an order without its items. With lock set the row stays locked
// until q's transaction ends.
func Lookup(ctx context.Context, q dbx.Queryer, orderID int64, lock bool) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	if lock {
		query += dbx.ForUpdate(q)
	}
	var row orderRow
	if err := dbx.Get(ctx, q, &row, query, orderID); err != nil {
		if dbx.IsNoRows(err) {
			return Order{}, orderNotFound(orderID)
		}
		return Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return row.toOrder(), nil
}

// Items returns an order's lines in the order they were created.
func Items(ctx context.Context, q dbx.Queryer, orderID int64) ([]Item, error) {
	var rows []itemRow
	if err := dbx.Select(ctx, q, &rows,
		`SELECT id, order_id, medicine_id, quantity, unit_price, subtotal FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID); err != nil {
		return nil, fmt.Errorf("list items of order %d: %w", orderID, err)
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

// MarkPaymentStatus sets the payment status inside the caller's transaction.
func MarkPaymentStatus(ctx context.Context, q dbx.Queryer, orderID int64, status PaymentStatus) error {
	n, err := dbx.Exec(ctx, q, `UPDATE orders SET payment_status = ? WHERE id = ?`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("mark order %d %s: %w", orderID, status, err)
	}
	if n == 0 {
		return orderNotFound(orderID)
	}
	return nil
}

func setStatus(ctx context.Context, q dbx.Queryer, orderID int64, from, to Status) (bool, error) {
	n, err := dbx.Exec(ctx, q, `UPDATE orders SET status = ? WHERE id = ? AND status = ?`, string(to), orderID, string(from))
	if err != nil {
		return false, fmt.Errorf("set order %d status: %w", orderID, err)
	}
	return n == 1, nil
}

func listByPatient(ctx context.Context, q dbx.Queryer, patientID int64) ([]Order, error) {
	var rows []orderRow
	if err := dbx.Select(ctx, q, &rows,
		`SELECT `+orderColumns+` FROM orders WHERE patient_id = ? ORDER BY id DESC`, patientID); err != nil {
		return nil, fmt.Errorf("list orders of patient %d: %w", patientID, err)
	}
	out := make([]Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOrder())
	}
	return out, nil
}

const invoiceUnpaid = "Unpaid"

// linkedInvoice is the live invoice of an order, as seen by cancellation.
type linkedInvoice struct {
	ID     int64  `db:"id"`
	Status string `db:"status"`
}

func lockLinkedInvoice(ctx context.Context, q dbx.Queryer, orderID int64) (*linkedInvoice, error) {
	var inv linkedInvoice
	err := dbx.Get(ctx, q, &inv,
		`SELECT id, status FROM invoices WHERE order_id = ? AND status <> 'Cancelled'`+dbx.ForUpdate(q), orderID)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("invoice of order %d: %w", orderID, err)
	}
	return &inv, nil
}

func cancelInvoice(ctx context.Context, q dbx.Queryer, invoiceID int64) error {
	if _, err := dbx.Exec(ctx, q, `UPDATE invoices SET status = 'Cancelled' WHERE id = ? AND status = ?`, invoiceID, invoiceUnpaid); err != nil {
		return fmt.Errorf("cancel invoice %d: %w", invoiceID, err)
	}
	return nil
}
