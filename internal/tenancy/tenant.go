// Package tenancy defines the tenant model, the isolation boundary every
// scoped entity hangs off.
package tenancy

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the tenant does not exist.
var ErrNotFound = errors.New("tenancy: not found")

// Tenant is an isolated customer organization. The slug is the routing key
// used at login; retention fields drive the background sweep.
type Tenant struct {
	ID                string    `json:"id"`
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Active            bool      `json:"active"`
	HistoryEnabled    bool      `json:"historyEnabled"`
	AutoClearEnabled  bool      `json:"autoClearEnabled"`
	AutoClearInterval *int      `json:"autoClearInterval,omitempty"` // minutes
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Store describes tenant persistence.
type Store interface {
	Find(ctx context.Context, id string) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	// ListAutoClear returns active tenants with auto-clear enabled and a
	// non-null interval, the population the retention sweeper visits.
	ListAutoClear(ctx context.Context) ([]*Tenant, error)
	Deactivate(ctx context.Context, id string) error
}
