// Package rooms manages device principals: physical room terminals that
// authenticate with an opaque bearer secret instead of a credential pair.
package rooms

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"tably.io/internal/audit"
	"tably.io/internal/ids"
	"tably.io/internal/obs"
)

// TokenPrefix marks room secrets so leaked values are recognizable in logs
// and scanners.
const TokenPrefix = "rmk_"

var (
	ErrNotFound = errors.New("rooms: not found")
	ErrInactive = errors.New("rooms: room inactive")
)

// Room is a device principal bound to one tenant and one kitchen. The opaque
// secret is its sole authentication factor; only the SHA-256 hash is stored,
// and the secret is regenerable without deleting the record.
type Room struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	KitchenID string    `json:"kitchenId"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store describes room persistence. Lookups that take a tenant id carry it in
// the selection clause so a caller can never reach another tenant's rooms.
type Store interface {
	Find(ctx context.Context, id, tenantID string) (*Room, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*Room, error)
	// RotateToken swaps the stored hash; the previous secret dies
	// immediately. Zero matched rows is ErrNotFound.
	RotateToken(ctx context.Context, id, tenantID, newHash string) error
}

// Hasher turns a presented secret into its stored representation.
type Hasher func(token string) string

// Service implements device authentication and token regeneration.
type Service struct {
	store Store
	hash  Hasher
	audit audit.Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAudit enables best-effort audit entries on token rotation.
func WithAudit(store audit.Store) ServiceOption {
	return func(s *Service) { s.audit = store }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the room service.
func NewService(store Store, hash Hasher, opts ...ServiceOption) *Service {
	s := &Service{store: store, hash: hash, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate resolves an opaque room token to its device record. The token
// is verified by direct store lookup, not by signature. Tenant liveness is
// the caller's concern; this layer only vouches for the room itself.
func (s *Service) Authenticate(ctx context.Context, token string) (*Room, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	room, err := s.store.FindByTokenHash(ctx, s.hash(token))
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, ErrInactive
	}
	return room, nil
}

// RegenerateToken mints a new opaque secret for the room and invalidates the
// previous one. The plaintext is returned exactly once.
func (s *Service) RegenerateToken(ctx context.Context, tenantID, roomID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.store.RotateToken(ctx, roomID, tenantID, s.hash(token)); err != nil {
		return "", err
	}
	s.appendAudit(ctx, tenantID, roomID)
	return token, nil
}

func (s *Service) appendAudit(ctx context.Context, tenantID, roomID string) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		ID:         ids.New(),
		TenantID:   tenantID,
		Actor:      roomID,
		Action:     "room.token_regenerated",
		EntityType: "room",
		EntityID:   roomID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "audit append failed",
			"action": entry.Action, "error": err.Error(),
		})
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
