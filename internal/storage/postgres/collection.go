// Package postgres is the relational storage backend. Each collection is a
// table of JSONB documents keyed by storage key, with a scope column for
// service-group scoped records.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"smpd/internal/storage"
	"smpd/pkg/platform/sentinel"
	"smpd/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Collection stores records of one type in one table.
type Collection[V storage.Record[V]] struct {
	db    *sql.DB
	table string
}

func NewCollection[V storage.Record[V]](db *sql.DB, table string) *Collection[V] {
	return &Collection[V]{db: db, table: table}
}

func scopeOf[V any](v V) string {
	if scoped, ok := any(v).(interface{ ScopeKey() string }); ok {
		return scoped.ScopeKey()
	}
	return ""
}

func (c *Collection[V]) Create(ctx context.Context, v V) (V, error) {
	var zero V
	doc, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.table, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, scope_key, doc) VALUES ($1, $2, $3) ON CONFLICT (key) DO NOTHING`, c.table)
	res, err := tx.QuerierFrom(ctx, c.db).ExecContext(ctx, query, v.StorageKey(), scopeOf(v), doc)
	if err != nil {
		return zero, c.mapError("create", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return zero, c.mapError("create", err)
	}
	if n == 0 {
		return zero, fmt.Errorf("%s key %q: %w", c.table, v.StorageKey(), sentinel.ErrConflict)
	}
	return v.Clone(), nil
}

func (c *Collection[V]) Update(ctx context.Context, v V) (storage.Change, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("encode %s: %w", c.table, err)
	}
	change := storage.Unchanged
	err = tx.Run(ctx, c.db, func(ctx context.Context, q tx.Querier) error {
		var raw []byte
		query := fmt.Sprintf(`SELECT doc FROM %s WHERE key = $1 FOR UPDATE`, c.table)
		if err := q.QueryRowContext(ctx, query, v.StorageKey()).Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				change = storage.NotFound
				return nil
			}
			return err
		}
		current, err := c.decode(raw)
		if err != nil {
			return err
		}
		if current.Equal(v) {
			return nil
		}
		update := fmt.Sprintf(`UPDATE %s SET doc = $2, scope_key = $3, updated_at = now() WHERE key = $1`, c.table)
		if _, err := q.ExecContext(ctx, update, v.StorageKey(), doc, scopeOf(v)); err != nil {
			return err
		}
		change = storage.Changed
		return nil
	})
	if err != nil {
		return storage.Unchanged, c.mapError("update", err)
	}
	return change, nil
}

func (c *Collection[V]) Delete(ctx context.Context, key string) (storage.Change, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, c.table)
	res, err := tx.QuerierFrom(ctx, c.db).ExecContext(ctx, query, key)
	if err != nil {
		return storage.Unchanged, c.mapError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unchanged, c.mapError("delete", err)
	}
	if n == 0 {
		return storage.Unchanged, nil
	}
	return storage.Changed, nil
}

func (c *Collection[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	var raw []byte
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE key = $1`, c.table)
	if err := tx.QuerierFrom(ctx, c.db).QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s key %q: %w", c.table, key, sentinel.ErrNotFound)
		}
		return zero, c.mapError("get", err)
	}
	return c.decode(raw)
}

func (c *Collection[V]) List(ctx context.Context) ([]V, error) {
	return c.query(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY key`, c.table))
}

func (c *Collection[V]) Contains(ctx context.Context, key string) (bool, error) {
	var ok bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, c.table)
	if err := tx.QuerierFrom(ctx, c.db).QueryRowContext(ctx, query, key).Scan(&ok); err != nil {
		return false, c.mapError("contains", err)
	}
	return ok, nil
}

func (c *Collection[V]) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, c.table)
	if err := tx.QuerierFrom(ctx, c.db).QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, c.mapError("count", err)
	}
	return n, nil
}

func (c *Collection[V]) query(ctx context.Context, query string, args ...any) ([]V, error) {
	rows, err := tx.QuerierFrom(ctx, c.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.mapError("list", err)
	}
	defer rows.Close()

	out := make([]V, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, c.mapError("list", err)
		}
		v, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, c.mapError("list", err)
	}
	return out, nil
}

func (c *Collection[V]) decode(raw []byte) (V, error) {
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w: %v", c.table, sentinel.ErrInvalidState, err)
	}
	return v, nil
}

func (c *Collection[V]) mapError(op string, err error) error {
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		return fmt.Errorf("%s %s: %w", op, c.table, sentinel.ErrConflict)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%s %s: %w: %v", op, c.table, sentinel.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s %s: %w", op, c.table, err)
	}
}

// ScopedCollection adds service-group scoped listing over the scope column.
type ScopedCollection[V storage.ScopedRecord[V]] struct {
	*Collection[V]
}

func NewScopedCollection[V storage.ScopedRecord[V]](db *sql.DB, table string) *ScopedCollection[V] {
	return &ScopedCollection[V]{Collection: NewCollection[V](db, table)}
}

func (c *ScopedCollection[V]) ListByScope(ctx context.Context, scopeKey string) ([]V, error) {
	return c.query(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE scope_key = $1 ORDER BY key`, c.table), scopeKey)
}
