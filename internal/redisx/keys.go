package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup webhook delivery: dedup:{service}:{event_id}. Fast path only;
	// the status predicate in the paid transaction is the real guard.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
