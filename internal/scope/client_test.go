package scope

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockClient(t *testing.T, tenantID string) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client, err := NewClient(db, mustScope(t, tenantID))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, mock
}

func TestNewClientRefusesZeroScope(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	if _, err := NewClient(db, Scope{}); !errors.Is(err, ErrNoTenant) {
		t.Errorf("got %v, want ErrNoTenant", err)
	}
}

func TestFindFirstScoped(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, tenant_id, room_id, status, total_cents, note, created_at, updated_at from orders where id = $1 and tenant_id = $2 limit 1").
		WithArgs("order-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "room_id", "status", "total_cents", "note", "created_at", "updated_at",
		}).AddRow("order-1", "tenant-1", "room-1", "pending", int64(1250), "", created, created))

	rec, err := client.FindFirst(context.Background(), Orders, Filter{"id": "order-1"})
	if err != nil {
		t.Fatalf("FindFirst: %v", err)
	}
	if rec["id"] != "order-1" || rec["status"] != "pending" {
		t.Errorf("record = %v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindFirstCrossTenantIsNotFound(t *testing.T) {
	// The row exists under another tenant; through this scope the lookup is
	// indistinguishable from true absence.
	client, mock := newMockClient(t, "tenant-2")

	mock.ExpectQuery("select id, tenant_id, room_id, status, total_cents, note, created_at, updated_at from orders where id = $1 and tenant_id = $2 limit 1").
		WithArgs("order-1", "tenant-2").
		WillReturnError(sql.ErrNoRows)

	if _, err := client.FindFirst(context.Background(), Orders, Filter{"id": "order-1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindManyScoped(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, tenant_id, room_id, status, total_cents, note, created_at, updated_at from orders where status = $1 and tenant_id = $2 order by created_at asc").
		WithArgs("pending", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "room_id", "status", "total_cents", "note", "created_at", "updated_at",
		}).
			AddRow("order-1", "tenant-1", "room-1", "pending", int64(1250), "", created, created).
			AddRow("order-2", "tenant-1", "room-1", "pending", int64(900), "no onions", created, created))

	recs, err := client.FindMany(context.Background(), Orders, Filter{"status": "pending"})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCountScoped(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")

	mock.ExpectQuery("select count(*) from orders where tenant_id = $1").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := client.Count(context.Background(), Orders, nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateForceWritesTenantOnExec(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")

	mock.ExpectExec("insert into orders(id, room_id, status, tenant_id) values ($1, $2, $3, $4)").
		WithArgs("order-9", "room-1", "pending", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := client.Create(context.Background(), Orders, Payload{
		"id":        "order-9",
		"room_id":   "room-1",
		"status":    "pending",
		"tenant_id": "tenant-spoofed",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateManyScoped(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")

	mock.ExpectExec("update orders set status = $1 where id = $2 and tenant_id = $3").
		WithArgs("preparing", "order-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := client.UpdateMany(context.Background(), Orders,
		Filter{"id": "order-1"}, Payload{"status": "preparing"})
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteManyScoped(t *testing.T) {
	client, mock := newMockClient(t, "tenant-1")
	cutoff := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("delete from orders where status = $1 and tenant_id = $2 and updated_at < $3").
		WithArgs("delivered", "tenant-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := client.DeleteMany(context.Background(), Orders, Filter{
		"status":       "delivered",
		"updated_at <": cutoff,
	})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if n != 4 {
		t.Errorf("rows = %d, want 4", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
