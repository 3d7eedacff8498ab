package conversion

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/token-bridge/core"
	"github.com/tsenart/nap"
)

func New(db *nap.DB) core.ConversionStore {
	return &store{db: db}
}

type store struct {
	db *nap.DB
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *store) Create(ctx context.Context, c *core.Conversion) error {
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	c.Phase = core.ConversionPhaseInitiated

	b := sq.Insert("conversions").
		Columns("created_at", "updated_at", "idempotency_key", "direction", "account_id", "wallet", "amount", "phase", "tx_hash", "block_number", "fiat", "token", "reason").
		Values(c.CreatedAt, c.UpdatedAt, c.Key, c.Direction, c.AccountID, c.Wallet, c.Amount, c.Phase, c.TxHash, c.Block, c.Fiat, c.Token, c.Reason)

	r, err := b.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return err
	}

	id, err := r.LastInsertId()
	if err != nil {
		return err
	}

	c.ID = uint64(id)
	return nil
}

func (s *store) FindKey(ctx context.Context, key string) (*core.Conversion, error) {
	b := sq.Select(scanColumns...).
		From("conversions").
		Where("idempotency_key = ?", key)
	row := b.RunWith(s.db).QueryRowContext(ctx)

	var c core.Conversion
	if err := scanConversion(row, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *store) Attach(ctx context.Context, c *core.Conversion, txHash string) error {
	updatedAt := now()
	b := sq.Update("conversions").
		Set("tx_hash", txHash).
		Set("updated_at", updatedAt).
		Where("id = ? AND phase = ?", c.ID, core.ConversionPhaseInitiated)

	if err := execOne(ctx, b.RunWith(s.db)); err != nil {
		return err
	}

	c.TxHash = txHash
	c.UpdatedAt = updatedAt
	return nil
}

func (s *store) UpdatePhase(ctx context.Context, c *core.Conversion, to core.ConversionPhase) error {
	updatedAt := now()
	b := sq.Update("conversions").
		Set("phase", to).
		Set("updated_at", updatedAt).
		Set("tx_hash", c.TxHash).
		Set("block_number", c.Block).
		Set("fiat", c.Fiat).
		Set("token", c.Token).
		Set("reason", truncate(c.Reason, 255)).
		Where("id = ? AND phase = ?", c.ID, c.Phase)

	if err := execOne(ctx, b.RunWith(s.db)); err != nil {
		return err
	}

	c.Phase = to
	c.UpdatedAt = updatedAt
	return nil
}

func execOne(ctx context.Context, b sq.UpdateBuilder) error {
	r, err := b.ExecContext(ctx)
	if err != nil {
		return err
	}

	n, err := r.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("optimistic lock failed")
	}

	return nil
}

func (s *store) ListPhase(ctx context.Context, phase core.ConversionPhase, limit int) ([]*core.Conversion, error) {
	b := sq.Select(scanColumns...).
		From("conversions").
		Where("phase = ?", phase).
		OrderBy("id").
		Limit(uint64(limit))

	return s.list(ctx, b)
}

func (s *store) ListFrom(ctx context.Context, offset uint64, limit int) ([]*core.Conversion, error) {
	b := sq.Select(scanColumns...).
		From("conversions").
		Where("id > ?", offset).
		OrderBy("id").
		Limit(uint64(limit))

	return s.list(ctx, b)
}

func (s *store) ListOutstanding(ctx context.Context, accountID string, failedSince time.Time) ([]*core.Conversion, error) {
	inFlight := []core.ConversionPhase{
		core.ConversionPhaseInitiated,
		core.ConversionPhaseChainConfirmed,
		core.ConversionPhaseReconciliationPending,
	}

	b := sq.Select(scanColumns...).
		From("conversions").
		Where(sq.Eq{"account_id": accountID}).
		Where(sq.Or{
			sq.Eq{"phase": inFlight},
			sq.And{
				sq.Eq{"phase": core.ConversionPhaseFailed},
				sq.NotEq{"tx_hash": ""},
				sq.GtOrEq{"updated_at": failedSince.UTC()},
			},
		}).
		OrderBy("id")

	return s.list(ctx, b)
}

func (s *store) list(ctx context.Context, b sq.SelectBuilder) ([]*core.Conversion, error) {
	rows, err := b.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var conversions []*core.Conversion
	for rows.Next() {
		var c core.Conversion
		if err := scanConversion(rows, &c); err != nil {
			return nil, err
		}

		conversions = append(conversions, &c)
	}

	return conversions, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
