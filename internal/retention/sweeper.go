// Package retention enforces per-tenant data-retention policy. The sweep is
// the only place old order history is actually deleted; client-side "clear
// history" affordances merely hide entries.
package retention

import (
	"context"
	"database/sql"
	"time"

	"tably.io/internal/obs"
	"tably.io/internal/orders"
	"tably.io/internal/scope"
	"tably.io/internal/tenancy"
)

// Sweeper deletes delivered orders older than each tenant's configured
// interval. It shares the service's connection pool and runs independently of
// the request path.
type Sweeper struct {
	db       *sql.DB
	tenants  tenancy.Store
	interval time.Duration
	now      func() time.Time
}

// Option configures Sweeper behavior.
type Option func(*Sweeper)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSweeper constructs a sweeper ticking at the given interval.
func NewSweeper(db *sql.DB, tenants tenancy.Store, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		db:       db,
		tenants:  tenants,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes sweeps on a fixed schedule until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over every tenant with auto-clear enabled. A
// failure for one tenant is logged and counted but never aborts the sweep
// for the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	tenants, err := s.tenants.ListAutoClear(ctx)
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "error", "msg": "retention sweep: list tenants failed",
			"error": err.Error(),
		})
		return
	}

	for _, tenant := range tenants {
		purged, err := s.sweepTenant(ctx, tenant)
		if err != nil {
			obs.SweepTenantFailures.Inc()
			obs.LogEvent(map[string]any{
				"level": "error", "msg": "retention sweep: tenant failed",
				"tenant": tenant.ID, "error": err.Error(),
			})
			continue
		}
		if purged > 0 {
			obs.SweepPurgedOrders.Add(float64(purged))
			obs.LogEvent(map[string]any{
				"level": "info", "msg": "retention sweep: purged orders",
				"tenant": tenant.ID, "purged": purged,
			})
		}
	}
	obs.SweepRuns.Inc()
}

// sweepTenant deletes delivered orders whose last update predates the
// tenant's cutoff, through a scoped client so the tenant constraint is
// enforced at the data-access boundary like everywhere else.
func (s *Sweeper) sweepTenant(ctx context.Context, tenant *tenancy.Tenant) (int64, error) {
	if tenant.AutoClearInterval == nil {
		return 0, nil
	}
	sc, err := scope.New(tenant.ID)
	if err != nil {
		return 0, err
	}
	client, err := scope.NewClient(s.db, sc)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().UTC().Add(-time.Duration(*tenant.AutoClearInterval) * time.Minute)
	return client.DeleteMany(ctx, scope.Orders, scope.Filter{
		"status":       string(orders.StatusDelivered),
		"updated_at <": cutoff,
	})
}
