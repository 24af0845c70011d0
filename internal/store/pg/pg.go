// Package pg implements the persistence interfaces on PostgreSQL via
// database/sql and the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tably.io/internal/audit"
	"tably.io/internal/auth"
	"tably.io/internal/config"
	"tably.io/internal/rooms"
	"tably.io/internal/tenancy"
)

// Store bundles every Postgres-backed store over one connection pool. The
// pool is the only cross-request shared resource; it is not partitioned per
// tenant.
type Store struct {
	db *sql.DB
}

var (
	_ auth.Store = (*Store)(nil)
)

// Open connects to Postgres and tunes the pool from configuration.
func Open(cfg config.Postgres) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for ready probes and scoped clients.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users(context.Context) auth.UserStore       { return &userStore{db: s.db} }
func (s *Store) Sessions(context.Context) auth.SessionStore { return &sessionStore{db: s.db} }

// Tenants returns the tenant store.
func (s *Store) Tenants() tenancy.Store { return &tenantStore{db: s.db} }

// Rooms returns the device-principal store.
func (s *Store) Rooms() rooms.Store { return &roomStore{db: s.db} }

// Audit returns the append-only audit store.
func (s *Store) Audit() audit.Store { return &auditStore{db: s.db} }
