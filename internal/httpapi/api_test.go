package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"tably.io/internal/auth"
	"tably.io/internal/config"
	"tably.io/internal/rooms"
	"tably.io/internal/tenancy"
)

type memUserStore struct{ users map[string]*auth.User }

func (s *memUserStore) Find(_ context.Context, id string) (*auth.User, error) {
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) FindByEmailInTenant(_ context.Context, email, tenantID string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email && u.TenantID == tenantID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) MarkEmailVerified(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

func (s *memUserStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	if u, ok := s.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memSessionStore struct{ byHash map[string]*auth.Session }

func (s *memSessionStore) Create(_ context.Context, sess *auth.Session) error {
	copied := *sess
	s.byHash[sess.TokenHash] = &copied
	return nil
}

func (s *memSessionStore) Rotate(_ context.Context, oldHash, newHash string, expiresAt, now time.Time) (*auth.Session, error) {
	sess, ok := s.byHash[oldHash]
	if !ok || sess.RevokedAt != nil || !sess.ExpiresAt.After(now) {
		return nil, auth.ErrSessionNotFound
	}
	delete(s.byHash, oldHash)
	sess.TokenHash = newHash
	sess.ExpiresAt = expiresAt
	s.byHash[newHash] = sess
	copied := *sess
	return &copied, nil
}

func (s *memSessionStore) Revoke(_ context.Context, tokenHash string, at time.Time) error {
	if sess, ok := s.byHash[tokenHash]; ok && sess.RevokedAt == nil {
		sess.RevokedAt = &at
	}
	return nil
}

type memAuthStore struct {
	users    *memUserStore
	sessions *memSessionStore
}

func (s *memAuthStore) Users(context.Context) auth.UserStore       { return s.users }
func (s *memAuthStore) Sessions(context.Context) auth.SessionStore { return s.sessions }

type memTenantStore struct{ tenants map[string]*tenancy.Tenant }

func (s *memTenantStore) Find(_ context.Context, id string) (*tenancy.Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, tenancy.ErrNotFound
}

func (s *memTenantStore) FindBySlug(_ context.Context, slug string) (*tenancy.Tenant, error) {
	for _, t := range s.tenants {
		if t.Slug == slug {
			copied := *t
			return &copied, nil
		}
	}
	return nil, tenancy.ErrNotFound
}

func (s *memTenantStore) ListAutoClear(context.Context) ([]*tenancy.Tenant, error) {
	return nil, nil
}

func (s *memTenantStore) Deactivate(_ context.Context, id string) error {
	if t, ok := s.tenants[id]; ok {
		t.Active = false
		return nil
	}
	return tenancy.ErrNotFound
}

type memRoomStore struct{ rooms map[string]*rooms.Room }

func (s *memRoomStore) Find(_ context.Context, id, tenantID string) (*rooms.Room, error) {
	if r, ok := s.rooms[id]; ok && r.TenantID == tenantID {
		copied := *r
		return &copied, nil
	}
	return nil, rooms.ErrNotFound
}

func (s *memRoomStore) FindByTokenHash(_ context.Context, tokenHash string) (*rooms.Room, error) {
	for _, r := range s.rooms {
		if r.TokenHash == tokenHash {
			copied := *r
			return &copied, nil
		}
	}
	return nil, rooms.ErrNotFound
}

func (s *memRoomStore) RotateToken(_ context.Context, id, tenantID, newHash string) error {
	r, ok := s.rooms[id]
	if !ok || r.TenantID != tenantID {
		return rooms.ErrNotFound
	}
	r.TokenHash = newHash
	return nil
}

type env struct {
	handler  http.Handler
	tokens   *auth.TokenService
	tenants  *memTenantStore
	users    *memUserStore
	mock     sqlmock.Sqlmock
	password string
	now      time.Time
}

const testRoomToken = "rmk_test_device_token"

func newEnv(t *testing.T) *env {
	t.Helper()
	const password = "Str0ng!pass"
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	users := &memUserStore{users: map[string]*auth.User{
		"user-admin": {
			ID: "user-admin", TenantID: "tenant-1", Email: "admin@example.com",
			PasswordHash: hash, Role: auth.RoleAdmin, Active: true, EmailVerified: true,
		},
		"user-kitchen": {
			ID: "user-kitchen", TenantID: "tenant-1", Email: "kitchen@example.com",
			PasswordHash: hash, Role: auth.RoleKitchen, Active: true, EmailVerified: true,
		},
	}}
	store := &memAuthStore{users: users, sessions: &memSessionStore{byHash: map[string]*auth.Session{}}}
	tenants := &memTenantStore{tenants: map[string]*tenancy.Tenant{
		"tenant-1": {ID: "tenant-1", Slug: "bistro", Name: "Bistro", Active: true},
	}}
	roomStore := &memRoomStore{rooms: map[string]*rooms.Room{
		"room-1": {
			ID: "room-1", TenantID: "tenant-1", KitchenID: "kitchen-1",
			Name: "Front Room", TokenHash: auth.HashToken(testRoomToken), Active: true,
		},
	}}

	tokens, err := auth.NewTokenService("test-secret", "tably", "tably-api",
		15*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService(store, tenants, tokens, auth.WithBcryptCost(bcrypt.MinCost))
	roomSvc := rooms.NewService(roomStore, auth.HashToken)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	api := New(config.Server{MaxBodyBytes: 1 << 20}, authSvc, tokens, tenants, roomSvc, db,
		WithClock(func() time.Time { return now }))
	return &env{
		handler:  api.Routes(),
		tokens:   tokens,
		tenants:  tenants,
		users:    users,
		mock:     mock,
		password: password,
		now:      now,
	}
}

func (e *env) accessToken(t *testing.T, userID string) string {
	t.Helper()
	pair, err := e.tokens.IssuePair(e.users.users[userID])
	if err != nil {
		t.Fatal(err)
	}
	return pair.AccessToken
}

func (e *env) do(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestBearerAuthRejections(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/orders", "", nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "missing_token" {
		t.Errorf("no token: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/orders", "garbage", nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "invalid_token" {
		t.Errorf("garbage token: %d %s", rec.Code, rec.Body.String())
	}

	expiredSvc, err := auth.NewTokenService("test-secret", "tably", "tably-api",
		15*time.Minute, time.Hour,
		auth.WithTokenClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	if err != nil {
		t.Fatal(err)
	}
	pair, err := expiredSvc.IssuePair(e.users.users["user-admin"])
	if err != nil {
		t.Fatal(err)
	}
	rec = e.do(t, http.MethodGet, "/orders", pair.AccessToken, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "token_expired" {
		t.Errorf("expired token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoginEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/login", "", loginRequest{
		Email: "admin@example.com", Password: e.password, TenantSlug: "bistro",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Error("missing tokens in response")
	}
	if resp.User == nil || resp.User.Email != "admin@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("password hash leaked in response body")
	}

	rec = e.do(t, http.MethodPost, "/auth/login", "", loginRequest{
		Email: "admin@example.com", Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "invalid_credentials" {
		t.Errorf("bad password: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	e := newEnv(t)

	login := e.do(t, http.MethodPost, "/auth/login", "", loginRequest{
		Email: "admin@example.com", Password: e.password,
	})
	var first tokenResponse
	if err := json.Unmarshal(login.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{
		RefreshToken: first.Tokens.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}

	// The rotated-away token is dead.
	rec = e.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{
		RefreshToken: first.Tokens.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "session_not_found" {
		t.Errorf("replayed refresh: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/auth/logout", "", refreshRequest{})
	if rec.Code != http.StatusOK {
		t.Errorf("logout with empty token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequireRolesForbidden(t *testing.T) {
	e := newEnv(t)

	token := e.accessToken(t, "user-kitchen")
	rec := e.do(t, http.MethodPost, "/rooms/room-1/regenerate-token", token, nil)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "forbidden" {
		t.Errorf("kitchen role on admin route: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequireRolesTenantInactive(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")
	e.tenants.tenants["tenant-1"].Active = false

	rec := e.do(t, http.MethodGet, "/orders", token, nil)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "tenant_inactive" {
		t.Errorf("inactive tenant: %d %s", rec.Code, rec.Body.String())
	}
}

func TestListOrdersScoped(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	e.mock.ExpectQuery("select id, tenant_id, room_id, status, total_cents, note, created_at, updated_at from orders where tenant_id = $1 order by created_at asc").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "room_id", "status", "total_cents", "note", "created_at", "updated_at",
		}).AddRow("order-1", "tenant-1", "room-1", "pending", int64(1250), "", created, created))

	rec := e.do(t, http.MethodGet, "/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: %d %s", rec.Code, rec.Body.String())
	}
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

const orderColumns = "id, tenant_id, room_id, status, total_cents, note, created_at, updated_at"

func (e *env) expectOrderLookup(id, status string) {
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	e.mock.ExpectQuery("select " + orderColumns + " from orders where id = $1 and tenant_id = $2 limit 1").
		WithArgs(id, "tenant-1").
		WillReturnRows(sqlmock.NewRows(strings.Split(orderColumns, ", ")).
			AddRow(id, "tenant-1", "room-1", status, int64(1250), "", created, created))
}

func TestUpdateOrderStatus(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")

	e.expectOrderLookup("order-1", "pending")
	e.mock.ExpectExec("update orders set status = $1, updated_at = $2 where id = $3 and status = $4 and tenant_id = $5").
		WithArgs("preparing", e.now, "order-1", "pending", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := e.do(t, http.MethodPatch, "/orders/order-1/status", token,
		updateOrderStatusRequest{Status: "preparing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateOrderStatusTerminalIsFinal(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")

	// A delivered order cannot be moved back; no update statement runs.
	e.expectOrderLookup("order-1", "delivered")
	rec := e.do(t, http.MethodPatch, "/orders/order-1/status", token,
		updateOrderStatusRequest{Status: "preparing"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invalid_transition" {
		t.Errorf("delivered to preparing: %d %s", rec.Code, rec.Body.String())
	}

	e.expectOrderLookup("order-2", "cancelled")
	rec = e.do(t, http.MethodPatch, "/orders/order-2/status", token,
		updateOrderStatusRequest{Status: "delivered"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invalid_transition" {
		t.Errorf("cancelled to delivered: %d %s", rec.Code, rec.Body.String())
	}

	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateOrderStatusConcurrentLoser(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")

	// The pinned state vanished between read and write.
	e.expectOrderLookup("order-1", "pending")
	e.mock.ExpectExec("update orders set status = $1, updated_at = $2 where id = $3 and status = $4 and tenant_id = $5").
		WithArgs("preparing", e.now, "order-1", "pending", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := e.do(t, http.MethodPatch, "/orders/order-1/status", token,
		updateOrderStatusRequest{Status: "preparing"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invalid_transition" {
		t.Errorf("lost race: %d %s", rec.Code, rec.Body.String())
	}
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateOrderStatusUnknownStatus(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")

	rec := e.do(t, http.MethodPatch, "/orders/order-1/status", token,
		updateOrderStatusRequest{Status: "vaporized"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_request" {
		t.Errorf("unknown status: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoomAuthViaQueryParam(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/room/login?roomToken="+testRoomToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("room login: %d %s", rec.Code, rec.Body.String())
	}
	var resp roomResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RoomID != "room-1" || resp.TenantID != "tenant-1" {
		t.Errorf("room = %+v", resp)
	}

	rec = e.do(t, http.MethodPost, "/room/login?roomToken=rmk_wrong", "", nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "invalid_token" {
		t.Errorf("wrong token: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/room/login", "", nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "missing_token" {
		t.Errorf("no token: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/room/login", "", roomLoginRequest{RoomToken: testRoomToken})
	if rec.Code != http.StatusOK {
		t.Errorf("token in body: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoomAuthRejectsInactiveTenant(t *testing.T) {
	e := newEnv(t)
	e.tenants.tenants["tenant-1"].Active = false

	rec := e.do(t, http.MethodPost, "/room/login?roomToken="+testRoomToken, "", nil)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "tenant_inactive" {
		t.Errorf("inactive tenant: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoomOrdersFilteredByRoom(t *testing.T) {
	e := newEnv(t)
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	e.mock.ExpectQuery("select id, tenant_id, room_id, status, total_cents, note, created_at, updated_at from orders where room_id = $1 and tenant_id = $2 order by created_at asc").
		WithArgs("room-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "room_id", "status", "total_cents", "note", "created_at", "updated_at",
		}).AddRow("order-1", "tenant-1", "room-1", "pending", int64(1250), "", created, created))

	rec := e.do(t, http.MethodGet, "/room/orders", testRoomToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("room orders: %d %s", rec.Code, rec.Body.String())
	}
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRegenerateRoomToken(t *testing.T) {
	e := newEnv(t)
	token := e.accessToken(t, "user-admin")

	rec := e.do(t, http.MethodPost, "/rooms/room-1/regenerate-token", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp["roomToken"], rooms.TokenPrefix) {
		t.Errorf("token %q missing prefix", resp["roomToken"])
	}

	// The old secret is dead the moment the new one exists.
	recOld := e.do(t, http.MethodPost, "/room/login?roomToken="+testRoomToken, "", nil)
	if recOld.Code != http.StatusUnauthorized {
		t.Errorf("old room token still accepted: %d", recOld.Code)
	}
	recNew := e.do(t, http.MethodPost, "/room/login?roomToken="+resp["roomToken"], "", nil)
	if recNew.Code != http.StatusOK {
		t.Errorf("new room token rejected: %d %s", recNew.Code, recNew.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/rooms/room-unknown/regenerate-token", token, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Errorf("unknown room: %d %s", rec.Code, rec.Body.String())
	}
}

func TestForcePasswordChange(t *testing.T) {
	e := newEnv(t)
	e.users.users["user-admin"].EmailVerified = false
	token := e.accessToken(t, "user-admin")

	rec := e.do(t, http.MethodPost, "/auth/force-password-change", token, forcePasswordChangeRequest{
		CurrentPassword: e.password, NewPassword: "weak",
	})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "weak_password" {
		t.Fatalf("weak password: %d %s", rec.Code, rec.Body.String())
	}
	if e.users.users["user-admin"].EmailVerified {
		t.Fatal("account must not activate on failed change")
	}

	rec = e.do(t, http.MethodPost, "/auth/force-password-change", token, forcePasswordChangeRequest{
		CurrentPassword: e.password, NewPassword: "N3w!passw0rd",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change: %d %s", rec.Code, rec.Body.String())
	}
	if !e.users.users["user-admin"].EmailVerified {
		t.Error("account not activated after password change")
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}
