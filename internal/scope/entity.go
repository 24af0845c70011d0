package scope

// Kind enumerates the closed set of entity kinds the scoped client accepts.
// Kinds outside the tenant-scoped allow-list (currently only Tenants) pass
// through unmodified; they are global resources.
type Kind int

const (
	Tenants Kind = iota
	Users
	Kitchens
	Rooms
	MenuItems
	Orders
	AuditEntries
)

func (k Kind) String() string {
	if m, ok := entities[k]; ok {
		return m.table
	}
	return "unknown"
}

type entityMeta struct {
	table   string
	scoped  bool
	orderBy string
	columns []string
}

func (m entityMeta) hasColumn(name string) bool {
	for _, c := range m.columns {
		if c == name {
			return true
		}
	}
	return false
}

// entities maps each kind to its table and column allow-list. Sensitive
// columns (password_hash, token_hash) are deliberately absent: nothing going
// through the scoped client can read or write them.
var entities = map[Kind]entityMeta{
	Tenants: {
		table:   "tenants",
		scoped:  false,
		orderBy: "created_at",
		columns: []string{
			"id", "slug", "name", "active",
			"history_enabled", "auto_clear_enabled", "auto_clear_interval",
			"created_at", "updated_at",
		},
	},
	Users: {
		table:   "users",
		scoped:  true,
		orderBy: "created_at",
		columns: []string{
			"id", "tenant_id", "email", "role", "active", "email_verified",
			"last_login_at", "created_at", "updated_at",
		},
	},
	Kitchens: {
		table:   "kitchens",
		scoped:  true,
		orderBy: "created_at",
		columns: []string{
			"id", "tenant_id", "name", "active", "created_at", "updated_at",
		},
	},
	Rooms: {
		table:   "rooms",
		scoped:  true,
		orderBy: "created_at",
		columns: []string{
			"id", "tenant_id", "kitchen_id", "name", "active",
			"created_at", "updated_at",
		},
	},
	MenuItems: {
		table:   "menu_items",
		scoped:  true,
		orderBy: "created_at",
		columns: []string{
			"id", "tenant_id", "kitchen_id", "name", "description",
			"price_cents", "available", "created_at", "updated_at",
		},
	},
	Orders: {
		table:   "orders",
		scoped:  true,
		orderBy: "created_at",
		columns: []string{
			"id", "tenant_id", "room_id", "status", "total_cents", "note",
			"created_at", "updated_at",
		},
	},
	AuditEntries: {
		table:   "audit_entries",
		scoped:  true,
		orderBy: "occurred_at",
		columns: []string{
			"id", "tenant_id", "actor", "action", "entity_type", "entity_id",
			"metadata", "occurred_at",
		},
	},
}
