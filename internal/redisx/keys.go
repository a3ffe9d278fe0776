package redisx

import (
	"fmt"
	"time"
)

const (
	// Checkout idempotency: idem:checkout:{patient_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Cached order status: order_status:{order_id} -> {"status": "...", "payment_status": "..."}
	KeyOrderStatus = "order_status:%d"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func IdemCheckoutKey(patientID int64, key string) string {
	return fmt.Sprintf(KeyIdemCheckout, patientID, key)
}

func OrderStatusKey(orderID int64) string {
	return fmt.Sprintf(KeyOrderStatus, orderID)
}

func DedupKey(service, eventID string) string {
	return fmt.Sprintf(KeyDedup, service, eventID)
}
