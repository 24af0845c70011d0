package auth

import "context"

// Principal is any authenticated actor. Both authentication schemes produce a
// value behind this interface so the authorization gate never special-cases
// which scheme let the caller in.
type Principal interface {
	TenantID() string
	Role() Role
	DisplayIdentity() string
}

// UserPrincipal is a human actor authenticated by a signed access token.
type UserPrincipal struct {
	userID   string
	tenantID string
	role     Role
	email    string
}

// NewUserPrincipal builds the principal attached after bearer authentication.
func NewUserPrincipal(userID, tenantID string, role Role, email string) UserPrincipal {
	return UserPrincipal{userID: userID, tenantID: tenantID, role: role, email: email}
}

func (p UserPrincipal) UserID() string          { return p.userID }
func (p UserPrincipal) TenantID() string        { return p.tenantID }
func (p UserPrincipal) Role() Role              { return p.role }
func (p UserPrincipal) Email() string           { return p.email }
func (p UserPrincipal) DisplayIdentity() string { return p.email }

// RoomPrincipal is a device actor authenticated by an opaque room token.
// Its role is fixed to the kitchen device role.
type RoomPrincipal struct {
	roomID    string
	tenantID  string
	kitchenID string
	name      string
}

// NewRoomPrincipal builds the principal attached after device authentication.
func NewRoomPrincipal(roomID, tenantID, kitchenID, name string) RoomPrincipal {
	return RoomPrincipal{roomID: roomID, tenantID: tenantID, kitchenID: kitchenID, name: name}
}

func (p RoomPrincipal) RoomID() string          { return p.roomID }
func (p RoomPrincipal) TenantID() string        { return p.tenantID }
func (p RoomPrincipal) KitchenID() string       { return p.kitchenID }
func (p RoomPrincipal) Role() Role              { return RoleKitchen }
func (p RoomPrincipal) DisplayIdentity() string { return p.name }

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
