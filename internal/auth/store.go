package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Sessions(ctx context.Context) SessionStore
}

// UserStore manages human principals.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailInTenant(ctx context.Context, email, tenantID string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionStore manages the refresh-token session lifecycle.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// Rotate atomically replaces the stored token hash and expiry of the
	// live session matching oldHash. It compares-and-swaps in a single
	// statement so only one of two concurrent refreshes can win; the loser
	// gets ErrSessionNotFound.
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt, now time.Time) (*Session, error)
	// Revoke marks every non-revoked session holding tokenHash as revoked.
	// Revoking an already-dead session is not an error.
	Revoke(ctx context.Context, tokenHash string, at time.Time) error
}
