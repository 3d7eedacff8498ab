package property

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
	"github.com/tsenart/nap"
)

type propertyStore struct {
	db *nap.DB
}

func New(db *nap.DB) core.PropertyStore {
	return &propertyStore{db: db}
}

// Get decodes the value of key into value, leaving value untouched when the
// key was never set.
func (s *propertyStore) Get(ctx context.Context, key string, value any) error {
	var raw []byte

	err := sq.Select("`value`").
		From("properties").
		Where(sq.Eq{"`key`": key}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&raw)

	switch {
	case err == nil:
		return json.Unmarshal(raw, value)
	case store.IsErrNotFound(err):
		return nil
	default:
		return err
	}
}

func (s *propertyStore) Set(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	r, err := sq.Update("properties").
		Set("`value`", string(jsonValue)).
		Set("`version`", sq.Expr("`version` + 1")).
		Where(sq.Eq{"`key`": key}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to set property: %w", err)
	}

	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n > 0 {
		return nil
	}

	_, err = sq.Insert("properties").
		Columns("`key`", "`value`").
		Values(key, string(jsonValue)).
		RunWith(s.db).
		ExecContext(ctx)
	return err
}
