// Package orders holds the minimal order model consumed by the scoped client
// and the retention sweeper. The full ordering workflow lives behind the
// business handlers; only the states the sweep must understand are modeled.
package orders

import (
	"time"

	"tably.io/internal/scope"
)

// Status is the closed set of order states. Delivered and cancelled are
// terminal; only delivered orders are subject to retention.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether an order may move between the two states.
// Terminal states accept no further transitions, so a delivered order can
// never be pulled back out of retention's reach.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPreparing || to == StatusCancelled
	case StatusPreparing:
		return to == StatusDelivered || to == StatusCancelled
	default:
		return false
	}
}

// Order is one tenant-scoped order record.
type Order struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	RoomID     string    `json:"roomId"`
	Status     Status    `json:"status"`
	TotalCents int64     `json:"totalCents"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FromRecord converts a scoped-client record into an Order.
func FromRecord(rec scope.Record) Order {
	o := Order{}
	if v, ok := rec["id"].(string); ok {
		o.ID = v
	}
	if v, ok := rec["tenant_id"].(string); ok {
		o.TenantID = v
	}
	if v, ok := rec["room_id"].(string); ok {
		o.RoomID = v
	}
	if v, ok := rec["status"].(string); ok {
		o.Status = Status(v)
	}
	if v, ok := rec["total_cents"].(int64); ok {
		o.TotalCents = v
	}
	if v, ok := rec["note"].(string); ok {
		o.Note = v
	}
	if v, ok := rec["created_at"].(time.Time); ok {
		o.CreatedAt = v
	}
	if v, ok := rec["updated_at"].(time.Time); ok {
		o.UpdatedAt = v
	}
	return o
}
