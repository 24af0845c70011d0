// Package audit provides the append-only record of tenant-scoped mutations.
package audit

import (
	"context"
	"time"
)

// Entry records one mutation. Entries are append-only and owned by the tenant.
type Entry struct {
	ID         string
	TenantID   string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]string
	OccurredAt time.Time
}

// Store appends immutable entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}
