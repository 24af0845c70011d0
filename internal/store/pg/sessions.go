package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tably.io/internal/auth"
)

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions (id, user_id, tenant_id, token_hash, user_agent, ip, created_at, expires_at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.UserID, sess.TenantID, sess.TokenHash,
		sess.UserAgent, sess.IP, sess.CreatedAt, sess.ExpiresAt)
	return err
}

// Rotate is a single compare-and-swap statement: the WHERE clause pins the
// old hash, liveness and expiry, so two concurrent refreshes of the same
// session race on the row and exactly one update lands.
func (s *sessionStore) Rotate(ctx context.Context, oldHash, newHash string, expiresAt, now time.Time) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`update sessions set token_hash=$1, expires_at=$2
		 where token_hash=$3 and revoked_at is null and expires_at > $4
		 returning id, user_id, tenant_id, user_agent, ip, created_at`,
		newHash, expiresAt, oldHash, now)

	sess := auth.Session{TokenHash: newHash, ExpiresAt: expiresAt}
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TenantID,
		&sess.UserAgent, &sess.IP, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked_at=$1 where token_hash=$2 and revoked_at is null`,
		at, tokenHash)
	return err
}
