package scope

import (
	"fmt"
	"sort"
	"strings"
)

// Filter selects rows. Keys are column names with an optional comparison
// operator suffix, e.g. "status" or "updated_at <". Bare keys compare equal.
type Filter map[string]any

// Payload carries column values for create, update and upsert operations.
type Payload map[string]any

// operation is the closed set of query shapes the scoped client can execute.
// Each variant owns its rewrite rule, so the behavior of every entity kind
// under every operation is enumerable and testable in isolation.
type operation interface {
	build(m entityMeta, sc Scope) (query string, args []any, err error)
}

type findFirstOp struct{ filter Filter }
type listOp struct{ filter Filter }
type countOp struct{ filter Filter }
type updateOp struct {
	filter Filter
	set    Payload
}
type deleteOp struct{ filter Filter }
type createOp struct{ payload Payload }
type upsertOp struct{ payload Payload }

// scopeFilter merges the tenant constraint into the caller's filter for
// scoped kinds. The caller's other conditions are preserved; a caller-supplied
// tenant_id is silently overridden — the injector wins.
func scopeFilter(m entityMeta, sc Scope, f Filter) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	if m.scoped {
		out["tenant_id"] = sc.TenantID()
	}
	return out
}

// scopePayload force-writes the tenant id into creation payloads for scoped
// kinds so a spoofed payload field can never plant a record under another
// tenant.
func scopePayload(m entityMeta, sc Scope, p Payload) Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	if m.scoped {
		out["tenant_id"] = sc.TenantID()
	}
	return out
}

var comparators = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// renderWhere turns a filter into a deterministic parameterized clause.
// Keys are emitted in sorted order so generated SQL is stable.
func renderWhere(m entityMeta, f Filter, next int) (string, []any, int, error) {
	if len(f) == 0 {
		return "", nil, next, nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		parts []string
		args  []any
	)
	for _, key := range keys {
		column, op := key, "="
		if i := strings.IndexByte(key, ' '); i >= 0 {
			column = key[:i]
			op = strings.TrimSpace(key[i+1:])
		}
		if !comparators[op] || !m.hasColumn(column) {
			return "", nil, 0, fmt.Errorf("%w: %q on %s", ErrInvalidFilter, key, m.table)
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", column, op, next))
		args = append(args, f[key])
		next++
	}
	return " where " + strings.Join(parts, " and "), args, next, nil
}

func renderSet(m entityMeta, p Payload, next int) (string, []any, int, error) {
	if len(p) == 0 {
		return "", nil, 0, fmt.Errorf("%w: empty update payload for %s", ErrInvalidFilter, m.table)
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		parts []string
		args  []any
	)
	for _, key := range keys {
		if !m.hasColumn(key) {
			return "", nil, 0, fmt.Errorf("%w: column %q on %s", ErrInvalidFilter, key, m.table)
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", key, next))
		args = append(args, p[key])
		next++
	}
	return strings.Join(parts, ", "), args, next, nil
}

func (op findFirstOp) build(m entityMeta, sc Scope) (string, []any, error) {
	where, args, _, err := renderWhere(m, scopeFilter(m, sc, op.filter), 1)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("select %s from %s%s limit 1",
		strings.Join(m.columns, ", "), m.table, where)
	return q, args, nil
}

func (op listOp) build(m entityMeta, sc Scope) (string, []any, error) {
	where, args, _, err := renderWhere(m, scopeFilter(m, sc, op.filter), 1)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("select %s from %s%s order by %s asc",
		strings.Join(m.columns, ", "), m.table, where, m.orderBy)
	return q, args, nil
}

func (op countOp) build(m entityMeta, sc Scope) (string, []any, error) {
	where, args, _, err := renderWhere(m, scopeFilter(m, sc, op.filter), 1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("select count(*) from %s%s", m.table, where), args, nil
}

func (op updateOp) build(m entityMeta, sc Scope) (string, []any, error) {
	set, setArgs, next, err := renderSet(m, op.set, 1)
	if err != nil {
		return "", nil, err
	}
	where, whereArgs, _, err := renderWhere(m, scopeFilter(m, sc, op.filter), next)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("update %s set %s%s", m.table, set, where)
	return q, append(setArgs, whereArgs...), nil
}

func (op deleteOp) build(m entityMeta, sc Scope) (string, []any, error) {
	where, args, _, err := renderWhere(m, scopeFilter(m, sc, op.filter), 1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("delete from %s%s", m.table, where), args, nil
}

func renderInsert(m entityMeta, p Payload) (cols []string, placeholders []string, args []any, err error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, key := range keys {
		if !m.hasColumn(key) {
			return nil, nil, nil, fmt.Errorf("%w: column %q on %s", ErrInvalidFilter, key, m.table)
		}
		cols = append(cols, key)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, p[key])
	}
	return cols, placeholders, args, nil
}

func (op createOp) build(m entityMeta, sc Scope) (string, []any, error) {
	cols, placeholders, args, err := renderInsert(m, scopePayload(m, sc, op.payload))
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("insert into %s(%s) values (%s)",
		m.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return q, args, nil
}

func (op upsertOp) build(m entityMeta, sc Scope) (string, []any, error) {
	cols, placeholders, args, err := renderInsert(m, scopePayload(m, sc, op.payload))
	if err != nil {
		return "", nil, err
	}
	var updates []string
	for _, c := range cols {
		if c == "id" || c == "tenant_id" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("%w: upsert payload has no updatable columns for %s", ErrInvalidFilter, m.table)
	}
	// The conflict target includes tenant_id for scoped kinds so an upsert
	// can only ever land on the scope's own row.
	target := "id"
	if m.scoped {
		target = "id, tenant_id"
	}
	q := fmt.Sprintf("insert into %s(%s) values (%s) on conflict (%s) do update set %s",
		m.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		target, strings.Join(updates, ", "))
	return q, args, nil
}
