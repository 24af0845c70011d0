package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tably.io/internal/auth"
	"tably.io/internal/ids"
	"tably.io/internal/orders"
	"tably.io/internal/scope"
)

// scopedClient builds the per-request data client from the scope the
// authorization gate attached. A request that reaches a handler without a
// scope is a routing bug, answered with a server error rather than a fallback
// to unscoped access.
func (a *API) scopedClient(r *http.Request) (*scope.Client, error) {
	sc, ok := scope.FromContext(r.Context())
	if !ok {
		return nil, scope.ErrNoTenant
	}
	return scope.NewClient(a.db, sc)
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	client, err := a.scopedClient(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "no tenant scope")
		return
	}

	filter := scope.Filter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	// Devices see only their own room's orders.
	if room, ok := auth.PrincipalFromContext(r.Context()); ok {
		if rp, isRoom := room.(auth.RoomPrincipal); isRoom {
			filter["room_id"] = rp.RoomID()
		}
	}

	records, err := client.FindMany(r.Context(), scope.Orders, filter)
	if err != nil {
		a.writeScopeError(w, err)
		return
	}
	out := make([]orders.Order, 0, len(records))
	for _, rec := range records {
		out = append(out, orders.FromRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	client, err := a.scopedClient(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "no tenant scope")
		return
	}

	rec, err := client.FindFirst(r.Context(), scope.Orders, scope.Filter{
		"id": chi.URLParam(r, "id"),
	})
	if err != nil {
		a.writeScopeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders.FromRecord(rec))
}

type createOrderRequest struct {
	RoomID     string `json:"roomId,omitempty"`
	TotalCents int64  `json:"totalCents"`
	Note       string `json:"note,omitempty"`
}

// handleCreateOrder inserts a pending order. The tenant id never comes from
// the payload; the scoped client force-writes it.
func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	client, err := a.scopedClient(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "no tenant scope")
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	roomID := req.RoomID
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		if rp, isRoom := principal.(auth.RoomPrincipal); isRoom {
			roomID = rp.RoomID()
		}
	}
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "roomId is required")
		return
	}

	id := ids.New()
	now := a.now().UTC()
	err = client.Create(r.Context(), scope.Orders, scope.Payload{
		"id":          id,
		"room_id":     roomID,
		"status":      string(orders.StatusPending),
		"total_cents": req.TotalCents,
		"note":        req.Note,
		"created_at":  now,
		"updated_at":  now,
	})
	if err != nil {
		a.writeScopeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// handleUpdateOrderStatus moves an order along its lifecycle. The current
// state is read first and pinned in the update's selection clause, so a
// concurrent transition loses cleanly and terminal orders are never
// resurrected.
func (a *API) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	client, err := a.scopedClient(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "no tenant scope")
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	target := orders.Status(req.Status)
	switch target {
	case orders.StatusPreparing, orders.StatusDelivered, orders.StatusCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := client.FindFirst(r.Context(), scope.Orders, scope.Filter{"id": id})
	if err != nil {
		a.writeScopeError(w, err)
		return
	}
	current := orders.FromRecord(rec).Status
	if !orders.CanTransition(current, target) {
		writeError(w, http.StatusConflict, "invalid_transition",
			"order cannot move from "+string(current)+" to "+string(target))
		return
	}

	n, err := client.UpdateMany(r.Context(), scope.Orders, scope.Filter{
		"id":     id,
		"status": string(current),
	}, scope.Payload{
		"status":     string(target),
		"updated_at": a.now().UTC(),
	})
	if err != nil {
		a.writeScopeError(w, err)
		return
	}
	if n == 0 {
		// Raced with a concurrent transition; the pinned state is gone.
		writeError(w, http.StatusConflict, "invalid_transition", "order state changed concurrently")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(target)})
}

func (a *API) writeScopeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scope.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, scope.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid filter")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
