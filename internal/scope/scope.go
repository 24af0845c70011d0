// Package scope implements the tenant context injector: a data-access client
// pre-constrained to one tenant for the lifetime of a request. Safety is
// enforced at this boundary, not by trusting call sites to remember the
// constraint — every operation against a scoped entity kind is rewritten to
// carry the tenant filter, and creation payloads have the tenant id
// force-written.
package scope

import (
	"errors"
	"strings"
)

var (
	// ErrNoTenant is returned when a scope is requested without a tenant id.
	// There is no "unscoped but still works" fallback.
	ErrNoTenant = errors.New("scope: no tenant id available")

	// ErrNotFound covers both true absence and existence under another
	// tenant; callers cannot tell the difference.
	ErrNotFound = errors.New("scope: not found")

	// ErrInvalidFilter flags a filter or payload referencing a column
	// outside the entity's allow-list.
	ErrInvalidFilter = errors.New("scope: invalid filter")
)

// Scope is the value object carrying the tenant constraint. It is attached to
// the request context by the authorization gate and passed down explicitly;
// no shared client instance is ever re-wrapped.
type Scope struct {
	tenantID string
}

// New builds a scope for the given tenant. An empty tenant id is refused.
func New(tenantID string) (Scope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Scope{}, ErrNoTenant
	}
	return Scope{tenantID: tenantID}, nil
}

// TenantID returns the tenant this scope is constrained to.
func (s Scope) TenantID() string { return s.tenantID }

// Zero reports whether the scope carries no tenant.
func (s Scope) Zero() bool { return s.tenantID == "" }
