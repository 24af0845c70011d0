package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tably.io/internal/auth"
	"tably.io/internal/rooms"
	"tably.io/internal/scope"
	"tably.io/internal/tenancy"
)

const bearerPrefix = "Bearer "

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}

// AuthenticateUser verifies a signed access token and attaches the human
// principal. It vouches for the token only; role and tenant gating is the
// authorization middleware's job.
func (a *API) AuthenticateUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}
		claims, err := a.tokens.Verify(token, auth.KindAccess)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
			default:
				writeError(w, http.StatusInternalServerError, "server_error", "authentication failed")
			}
			return
		}
		principal := auth.NewUserPrincipal(claims.Subject, claims.TenantID, claims.Role, claims.Email)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// roomToken reads the opaque device secret from the Authorization header or,
// for clients that cannot set headers, the roomToken query parameter.
func roomToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("roomToken"))
}

// resolveRoom authenticates an opaque device token and confirms the owning
// tenant is live. On failure the error response has already been written.
func (a *API) resolveRoom(w http.ResponseWriter, r *http.Request, token string) (*rooms.Room, bool) {
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token", "room token required")
		return nil, false
	}
	room, err := a.rooms.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, rooms.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "invalid_token", "unknown room token")
		case errors.Is(err, rooms.ErrInactive):
			writeError(w, http.StatusForbidden, "room_inactive", "room is inactive")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", "authentication failed")
		}
		return nil, false
	}

	// The room vouches for itself; its tenant must still be live.
	tenant, err := a.tenants.Find(r.Context(), room.TenantID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			writeError(w, http.StatusForbidden, "tenant_not_found", "tenant does not exist")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "server_error", "authentication failed")
		return nil, false
	}
	if !tenant.Active {
		writeError(w, http.StatusForbidden, "tenant_inactive", "tenant is inactive")
		return nil, false
	}
	return room, true
}

// AuthenticateRoom resolves an opaque room token to a device principal.
func (a *API) AuthenticateRoom(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room, ok := a.resolveRoom(w, r, roomToken(r))
		if !ok {
			return
		}
		principal := auth.NewRoomPrincipal(room.ID, room.TenantID, room.KitchenID, room.Name)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRoles is the authorization gate: the principal's role must be in the
// allow-list and its tenant must still be active at request time. On success
// the tenant scope is attached for the data layer.
func (a *API) RequireRoles(allowed ...auth.Role) func(http.Handler) http.Handler {
	allowSet := make(map[auth.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowSet[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
				return
			}
			if _, ok := allowSet[principal.Role()]; !ok {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}

			tenant, err := a.tenants.Find(r.Context(), principal.TenantID())
			if err != nil {
				if errors.Is(err, tenancy.ErrNotFound) {
					writeError(w, http.StatusForbidden, "tenant_not_found", "tenant does not exist")
					return
				}
				writeError(w, http.StatusInternalServerError, "server_error", "authorization failed")
				return
			}
			if !tenant.Active {
				writeError(w, http.StatusForbidden, "tenant_inactive", "tenant is inactive")
				return
			}

			sc, err := scope.New(principal.TenantID())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "server_error", "authorization failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(scope.ContextWithScope(r.Context(), sc)))
		})
	}
}
