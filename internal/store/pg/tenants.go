package pg

import (
	"context"
	"database/sql"
	"errors"

	"tably.io/internal/tenancy"
)

type tenantStore struct{ db *sql.DB }

const tenantColumns = `id, slug, name, active, history_enabled, auto_clear_enabled, auto_clear_interval, created_at, updated_at`

type tenantScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantScanner) (*tenancy.Tenant, error) {
	var (
		t        tenancy.Tenant
		interval sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.HistoryEnabled,
		&t.AutoClearEnabled, &interval, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenancy.ErrNotFound
		}
		return nil, err
	}
	if interval.Valid {
		n := int(interval.Int64)
		t.AutoClearInterval = &n
	}
	return &t, nil
}

func (s *tenantStore) Find(ctx context.Context, id string) (*tenancy.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where id=$1`, id))
}

func (s *tenantStore) FindBySlug(ctx context.Context, slug string) (*tenancy.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where slug=$1`, slug))
}

func (s *tenantStore) ListAutoClear(ctx context.Context) ([]*tenancy.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tenantColumns+` from tenants
		 where active and auto_clear_enabled and auto_clear_interval is not null
		 order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tenancy.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *tenantStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update tenants set active=false, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}
