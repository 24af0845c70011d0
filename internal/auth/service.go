package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tably.io/internal/audit"
	"tably.io/internal/ids"
	"tably.io/internal/obs"
	"tably.io/internal/tenancy"
)

// Service implements the session lifecycle: login, refresh, logout and
// password management. All failures resolve to the package sentinels so the
// HTTP layer can map them to stable error codes without leaking which half of
// a credential pair was wrong.
type Service struct {
	store      Store
	tenants    tenancy.Store
	tokens     *TokenService
	audit      audit.Store
	bcryptCost int
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAudit enables best-effort audit entries on session mutations.
func WithAudit(store audit.Store) ServiceOption {
	return func(s *Service) { s.audit = store }
}

// WithBcryptCost overrides the hashing cost used for new credentials.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the session lifecycle service.
func NewService(store Store, tenants tenancy.Store, tokens *TokenService, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		tenants: tenants,
		tokens:  tokens,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginInput carries the credentials presented at POST /auth/login.
type LoginInput struct {
	Email      string
	Password   string
	TenantSlug string
	UserAgent  string
	IP         string
}

// LoginResult is returned on success; the user's password hash is stripped.
type LoginResult struct {
	User   *User
	Tokens TokenPair
}

// Login authenticates email+password, optionally routed by tenant slug, and
// opens a new session. The owning tenant must be active before the password
// is ever compared.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	users := s.store.Users(ctx)

	var tenantID string
	if slug := strings.TrimSpace(in.TenantSlug); slug != "" {
		tenant, err := s.tenants.FindBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return nil, ErrTenantNotFound
			}
			return nil, err
		}
		if !tenant.Active {
			return nil, ErrTenantInactive
		}
		tenantID = tenant.ID
	}

	var (
		user *User
		err  error
	)
	if tenantID != "" {
		user, err = users.FindByEmailInTenant(ctx, email, tenantID)
	} else {
		user, err = users.FindByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// When no slug routed the login, the owning tenant still gates it.
	if tenantID == "" {
		tenant, err := s.tenants.Find(ctx, user.TenantID)
		if err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return nil, ErrTenantNotFound
			}
			return nil, err
		}
		if !tenant.Active {
			return nil, ErrTenantInactive
		}
	}

	if !user.Active {
		return nil, ErrAccountInactive
	}
	if !user.EmailVerified {
		return nil, ErrEmailUnverified
	}
	if err := VerifyPassword(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &Session{
		ID:        ids.New(),
		UserID:    user.ID,
		TenantID:  user.TenantID,
		TokenHash: HashToken(pair.RefreshToken),
		UserAgent: in.UserAgent,
		IP:        in.IP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.store.Sessions(ctx).Create(ctx, session); err != nil {
		return nil, err
	}
	if err := users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, user.TenantID, user.ID, "auth.login", "session", session.ID, nil)

	sanitized := *user
	sanitized.PasswordHash = ""
	sanitized.LastLoginAt = &now
	return &LoginResult{User: &sanitized, Tokens: pair}, nil
}

// Refresh rotates a live session. The stored token hash is swapped in a
// single compare-and-swap statement, so the pre-rotation value is dead the
// instant one concurrent refresh wins; the loser gets ErrSessionNotFound.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.Verify(refreshToken, KindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	tenant, err := s.tenants.Find(ctx, user.TenantID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !tenant.Active {
		return nil, ErrTenantInactive
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session, err := s.store.Sessions(ctx).Rotate(ctx,
		HashToken(refreshToken), HashToken(pair.RefreshToken),
		now.Add(s.tokens.RefreshTTL()), now)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, user.TenantID, user.ID, "auth.refresh", "session", session.ID, nil)

	sanitized := *user
	sanitized.PasswordHash = ""
	return &LoginResult{User: &sanitized, Tokens: pair}, nil
}

// Logout revokes every live session holding the presented refresh token.
// Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	now := s.now().UTC()
	if err := s.store.Sessions(ctx).Revoke(ctx, HashToken(refreshToken), now); err != nil {
		return err
	}
	if claims, err := s.tokens.Verify(refreshToken, KindRefresh); err == nil {
		s.appendAudit(ctx, claims.TenantID, claims.Subject, "auth.logout", "session", "", nil)
	}
	return nil
}

// ChangePassword verifies the current password, enforces the strength policy
// and replaces the credential hash. It does not touch the verification flag;
// account activation is a separate transition.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	if strength := CheckStrength(next); !strength.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(strength.Violations, "; "))
	}
	hash, err := HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.appendAudit(ctx, user.TenantID, user.ID, "auth.password_changed", "user", user.ID, nil)
	return nil
}

// ActivateAccount marks the user's email as verified. First login flows call
// this right after the forced password change.
func (s *Service) ActivateAccount(ctx context.Context, userID string) error {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.store.Users(ctx).MarkEmailVerified(ctx, userID); err != nil {
		return err
	}
	s.appendAudit(ctx, user.TenantID, user.ID, "auth.account_activated", "user", user.ID, nil)
	return nil
}

func (s *Service) appendAudit(ctx context.Context, tenantID, actor, action, entityType, entityID string, meta map[string]string) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		ID:         ids.New(),
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   meta,
		OccurredAt: s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "audit append failed",
			"action": action, "error": err.Error(),
		})
	}
}

// HashToken returns the stored representation of an opaque or refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
