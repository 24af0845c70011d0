package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tably.io/internal/auth"
	"tably.io/internal/rooms"
)

type roomResponse struct {
	RoomID    string `json:"roomId"`
	TenantID  string `json:"tenantId"`
	KitchenID string `json:"kitchenId"`
	Name      string `json:"name"`
}

type roomLoginRequest struct {
	RoomToken string `json:"roomToken"`
}

// handleRoomLogin confirms a device token and returns the room identity. The
// token may arrive in the body, the Authorization header or the roomToken
// query parameter. No signed pair is issued for devices; the token itself
// remains the session credential.
func (a *API) handleRoomLogin(w http.ResponseWriter, r *http.Request) {
	var req roomLoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	token := strings.TrimSpace(req.RoomToken)
	if token == "" {
		token = roomToken(r)
	}

	room, ok := a.resolveRoom(w, r, token)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		RoomID:    room.ID,
		TenantID:  room.TenantID,
		KitchenID: room.KitchenID,
		Name:      room.Name,
	})
}

// handleRegenerateRoomToken mints a new opaque secret for a room in the
// caller's tenant. Admin only; the plaintext is returned exactly once.
func (a *API) handleRegenerateRoomToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
		return
	}
	roomID := chi.URLParam(r, "roomID")

	token, err := a.rooms.RegenerateToken(r.Context(), principal.TenantID(), roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "room not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "token regeneration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"roomToken": token})
}
