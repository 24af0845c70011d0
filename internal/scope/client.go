package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one row returned by the scoped client. Byte slices are converted
// to strings; everything else keeps the driver's type.
type Record map[string]any

// Client is a scoped data-access handle. A fresh client is constructed per
// request from the scope the authorization gate attached; it never outlives
// the request and is never shared across tenants.
type Client struct {
	db    *sql.DB
	scope Scope
}

// NewClient binds a database handle to a scope. A zero scope is refused.
func NewClient(db *sql.DB, sc Scope) (*Client, error) {
	if sc.Zero() {
		return nil, ErrNoTenant
	}
	return &Client{db: db, scope: sc}, nil
}

// Scope returns the tenant constraint this client enforces.
func (c *Client) Scope() Scope { return c.scope }

// FindFirst looks up a single record. Lookups by a non-tenant unique key are
// rewritten into a filtered first-match carrying the tenant constraint, so a
// global id alone can never cross the isolation boundary. Absence after the
// rewrite is ErrNotFound regardless of whether the row exists elsewhere.
func (c *Client) FindFirst(ctx context.Context, kind Kind, filter Filter) (Record, error) {
	m, err := meta(kind)
	if err != nil {
		return nil, err
	}
	query, args, err := findFirstOp{filter: filter}.build(m, c.scope)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, args...), m.columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// FindMany returns every record matching the filter within the scope.
func (c *Client) FindMany(ctx context.Context, kind Kind, filter Filter) ([]Record, error) {
	m, err := meta(kind)
	if err != nil {
		return nil, err
	}
	query, args, err := listOp{filter: filter}.build(m, c.scope)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecordRows(rows, m.columns)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of matching records within the scope.
func (c *Client) Count(ctx context.Context, kind Kind, filter Filter) (int64, error) {
	m, err := meta(kind)
	if err != nil {
		return 0, err
	}
	query, args, err := countOp{filter: filter}.build(m, c.scope)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateMany applies the payload to matching records. The tenant filter lives
// in the selection clause, so rows of other tenants are unreachable.
func (c *Client) UpdateMany(ctx context.Context, kind Kind, filter Filter, set Payload) (int64, error) {
	m, err := meta(kind)
	if err != nil {
		return 0, err
	}
	query, args, err := updateOp{filter: filter, set: set}.build(m, c.scope)
	if err != nil {
		return 0, err
	}
	return c.exec(ctx, query, args)
}

// DeleteMany removes matching records within the scope.
func (c *Client) DeleteMany(ctx context.Context, kind Kind, filter Filter) (int64, error) {
	m, err := meta(kind)
	if err != nil {
		return 0, err
	}
	query, args, err := deleteOp{filter: filter}.build(m, c.scope)
	if err != nil {
		return 0, err
	}
	return c.exec(ctx, query, args)
}

// Create inserts a record. For scoped kinds the tenant id is force-written
// into the payload; a caller-supplied tenant id is silently overridden.
func (c *Client) Create(ctx context.Context, kind Kind, payload Payload) error {
	m, err := meta(kind)
	if err != nil {
		return err
	}
	query, args, err := createOp{payload: payload}.build(m, c.scope)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, query, args)
	return err
}

// Upsert inserts or updates a record by id within the scope.
func (c *Client) Upsert(ctx context.Context, kind Kind, payload Payload) error {
	m, err := meta(kind)
	if err != nil {
		return err
	}
	query, args, err := upsertOp{payload: payload}.build(m, c.scope)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, query, args)
	return err
}

func (c *Client) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func meta(kind Kind) (entityMeta, error) {
	m, ok := entities[kind]
	if !ok {
		return entityMeta{}, fmt.Errorf("%w: unknown entity kind %d", ErrInvalidFilter, kind)
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, columns []string) (Record, error) {
	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(Record, len(columns))
	for i, col := range columns {
		rec[col] = normalize(vals[i])
	}
	return rec, nil
}

func scanRecordRows(rows *sql.Rows, columns []string) (Record, error) {
	return scanRecord(rows, columns)
}

func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
