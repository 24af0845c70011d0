package auth

import "time"

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleKitchen Role = "kitchen"
)

// ValidRoles enumerates roles accepted on user records.
var ValidRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleStaff:   true,
	RoleKitchen: true,
}

// User represents a human account belonging to exactly one tenant.
type User struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Session is the server-side record backing one issued refresh token.
// The refresh token itself is never stored, only its SHA-256 hash; rotation
// overwrites the hash in place so the pre-rotation value dies immediately.
// Sessions are revoked, never deleted.
type Session struct {
	ID        string
	UserID    string
	TenantID  string
	TokenHash string
	UserAgent string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// TokenPair bundles freshly issued credentials.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}
