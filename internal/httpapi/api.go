package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tably.io/internal/auth"
	"tably.io/internal/config"
	"tably.io/internal/obs"
	"tably.io/internal/rooms"
	"tably.io/internal/tenancy"
)

// API bundles every dependency of the HTTP surface.
type API struct {
	cfg     config.Server
	auth    *auth.Service
	tokens  *auth.TokenService
	tenants tenancy.Store
	rooms   *rooms.Service
	db      *sql.DB
	ready   ReadyProbe
	now     func() time.Time
}

// Option configures API behavior.
type Option func(*API)

// WithReadyProbe wires the readiness check used by /readyz.
func WithReadyProbe(probe ReadyProbe) Option {
	return func(a *API) { a.ready = probe }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(a *API) {
		if fn != nil {
			a.now = fn
		}
	}
}

// New constructs the API.
func New(cfg config.Server, authSvc *auth.Service, tokens *auth.TokenService,
	tenants tenancy.Store, roomSvc *rooms.Service, db *sql.DB, opts ...Option) *API {
	a := &API{
		cfg:     cfg,
		auth:    authSvc,
		tokens:  tokens,
		tenants: tenants,
		rooms:   roomSvc,
		db:      db,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes assembles the router. Session endpoints are open; everything under
// the authenticated groups passes authentication, then the role and tenant
// gate, before any handler runs.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(a.cfg.MaxBodyBytes))
	if a.cfg.RatePerSec > 0 {
		r.Use(RateLimit(a.cfg.RatePerSec, a.cfg.RateBurst))
	}

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/logout", a.handleLogout)
		r.With(a.AuthenticateUser).Post("/force-password-change", a.handleForcePasswordChange)
	})

	r.Route("/room", func(r chi.Router) {
		r.Post("/login", a.handleRoomLogin)
		r.Group(func(r chi.Router) {
			r.Use(a.AuthenticateRoom)
			r.Use(a.RequireRoles(auth.RoleKitchen))
			r.Get("/orders", a.handleListOrders)
			r.Post("/orders", a.handleCreateOrder)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(a.AuthenticateUser)
		r.Use(a.RequireRoles(auth.RoleAdmin))
		r.Post("/rooms/{roomID}/regenerate-token", a.handleRegenerateRoomToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.AuthenticateUser)
		r.Use(a.RequireRoles(auth.RoleAdmin, auth.RoleStaff, auth.RoleKitchen))
		r.Get("/orders", a.handleListOrders)
		r.Get("/orders/{id}", a.handleGetOrder)
		r.Patch("/orders/{id}/status", a.handleUpdateOrderStatus)
	})

	return obs.Instrument(r)
}
