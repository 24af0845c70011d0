package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"tably.io/internal/audit"
)

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, entry *audit.Entry) error {
	meta := []byte("{}")
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_entries (id, tenant_id, actor, action, entity_type, entity_id, metadata, occurred_at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.TenantID, entry.Actor, entry.Action,
		entry.EntityType, entry.EntityID, meta, entry.OccurredAt)
	return err
}
