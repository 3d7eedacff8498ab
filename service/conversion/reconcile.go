package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pandodao/token-bridge/core"
)

func (s *service) Reconcile(ctx context.Context, key string) (*core.Conversion, error) {
	c, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, c.AccountID)
	if err != nil {
		return nil, &core.Error{Kind: core.KindStoreUnavailable, Phase: c.Phase, Key: key, Err: err}
	}

	defer unlock()

	// re-read under the lock
	if c, err = s.Find(ctx, key); err != nil {
		return nil, err
	}

	switch c.Phase {
	case core.ConversionPhaseLedgerApplied:
		return c, nil
	case core.ConversionPhaseReconciliationPending, core.ConversionPhaseChainConfirmed:
	default:
		return nil, &core.Error{
			Kind:  core.KindValidation,
			Phase: c.Phase,
			Key:   key,
			Err:   fmt.Errorf("conversion is %s, nothing to reconcile", c.Phase),
		}
	}

	logger := s.logger.With("conversion", key, "tx", c.TxHash)

	receipt, err := s.tokenz.Receipt(ctx, c.TxHash)
	if err != nil {
		logger.Error("tokenz.Receipt", "err", err)
		return nil, &core.Error{Kind: core.KindReconciliationPending, Phase: c.Phase, Key: key, Err: err}
	}

	if !receipt.Confirmed() {
		logger.Error("recorded chain operation is not confirmed", "status", receipt.Status)
		return nil, &core.Error{Kind: core.KindReconciliationPending, Phase: c.Phase, Key: key, Err: core.ErrChainRejected}
	}

	ctx = context.WithoutCancel(ctx)

	c.Block = receipt.Block
	if _, err := s.settle(ctx, c); err != nil {
		return nil, err
	}

	logger.Info("conversion reconciled")
	return c, nil
}

func (s *service) Recover(ctx context.Context, c *core.Conversion) error {
	unlock, err := s.locker.Lock(ctx, c.AccountID)
	if err != nil {
		return err
	}

	defer unlock()

	if c, err = s.conversions.FindKey(ctx, c.Key); err != nil {
		return err
	}

	logger := s.logger.With("conversion", c.Key, "phase", c.Phase.String(), "tx", c.TxHash)

	switch c.Phase {
	case core.ConversionPhaseInitiated, core.ConversionPhaseChainConfirmed:
		if time.Since(c.UpdatedAt) < s.cfg.StaleAfter {
			return nil
		}
	case core.ConversionPhaseFailed:
		if c.TxHash == "" {
			return nil
		}
	default:
		return nil
	}

	ctx = context.WithoutCancel(ctx)

	switch c.Phase {
	case core.ConversionPhaseInitiated:
		return s.recoverInitiated(ctx, c)
	case core.ConversionPhaseChainConfirmed:
		logger.Warn("resuming ledger half")
		return s.settleRecovered(ctx, c)
	}

	// a Failed conversion whose transaction confirmed after the wait gave up
	receipt, err := s.tokenz.Receipt(ctx, c.TxHash)
	switch {
	case errors.Is(err, core.ErrReceiptNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("tokenz.Receipt: %w", err)
	case !receipt.Confirmed():
		return nil
	}

	c.Block = receipt.Block
	_ = s.pending(ctx, c, fmt.Errorf("%w: confirmed in block %d after the conversion failed", core.ErrChainTimeout, receipt.Block))
	return nil
}

func (s *service) recoverInitiated(ctx context.Context, c *core.Conversion) error {
	if c.TxHash == "" {
		_ = s.fail(ctx, c, errors.New("abandoned before a transaction was recorded"))
		return nil
	}

	receipt, err := s.tokenz.Receipt(ctx, c.TxHash)
	switch {
	case errors.Is(err, core.ErrReceiptNotFound):
		_ = s.fail(ctx, c, fmt.Errorf("%w: no receipt after %s", core.ErrChainTimeout, s.cfg.StaleAfter))
		return nil
	case err != nil:
		return fmt.Errorf("tokenz.Receipt: %w", err)
	case !receipt.Confirmed():
		_ = s.fail(ctx, c, fmt.Errorf("%w: %s", core.ErrChainRejected, receipt.Reason))
		return nil
	}

	c.Block = receipt.Block
	if err := s.conversions.UpdatePhase(ctx, c, core.ConversionPhaseChainConfirmed); err != nil {
		return fmt.Errorf("conversions.UpdatePhase: %w", err)
	}

	return s.settleRecovered(ctx, c)
}

// settleRecovered settles c and treats a flagged pending outcome as handled.
func (s *service) settleRecovered(ctx context.Context, c *core.Conversion) error {
	if _, err := s.settle(ctx, c); err != nil && !core.IsKind(err, core.KindReconciliationPending) {
		return err
	}

	return nil
}
