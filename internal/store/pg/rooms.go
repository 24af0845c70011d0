package pg

import (
	"context"
	"database/sql"
	"errors"

	"tably.io/internal/rooms"
)

type roomStore struct{ db *sql.DB }

const roomColumns = `id, tenant_id, kitchen_id, name, token_hash, active, created_at, updated_at`

func scanRoom(row *sql.Row) (*rooms.Room, error) {
	var r rooms.Room
	err := row.Scan(&r.ID, &r.TenantID, &r.KitchenID, &r.Name,
		&r.TokenHash, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rooms.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *roomStore) Find(ctx context.Context, id, tenantID string) (*rooms.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`select `+roomColumns+` from rooms where id=$1 and tenant_id=$2`, id, tenantID))
}

func (s *roomStore) FindByTokenHash(ctx context.Context, tokenHash string) (*rooms.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`select `+roomColumns+` from rooms where token_hash=$1`, tokenHash))
}

func (s *roomStore) RotateToken(ctx context.Context, id, tenantID, newHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update rooms set token_hash=$1, updated_at=now() where id=$2 and tenant_id=$3`,
		newHash, id, tenantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rooms.ErrNotFound
	}
	return nil
}
