package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
	"github.com/shopspring/decimal"
)

// settle runs the ledger half of a conversion whose chain operation is
// confirmed and records the outcome. It is shared by Convert, Reconcile and
// Recover; the ledger entry keyed by the idempotency key makes it safe to run
// more than once.
func (s *service) settle(ctx context.Context, c *core.Conversion) (*core.Balances, error) {
	logger := s.logger.With("conversion", c.Key, "account", c.AccountID, "tx", c.TxHash)

	fiat, err := s.applyLedger(ctx, c)
	if err != nil {
		return nil, s.pending(ctx, c, err)
	}

	c.Fiat = fiat
	c.Token = s.readToken(ctx, c.Wallet)
	token := c.Token
	c.Reason = ""
	if err := s.conversions.UpdatePhase(ctx, c, core.ConversionPhaseLedgerApplied); err != nil {
		// the ledger entry is written; the next Reconcile or Recover pass
		// only has to record the phase
		logger.Error("conversions.UpdatePhase", "phase", core.ConversionPhaseLedgerApplied.String(), "err", err)
	}

	logger.Info("conversion applied", "fiat", fiat, "token", token)
	return &core.Balances{Fiat: fiat, Token: token}, nil
}

// readToken reads the token balance of wallet, retrying a few times. The
// result is null if the chain stays unreadable; a guessed figure would be
// replayed as the recorded outcome.
func (s *service) readToken(ctx context.Context, wallet string) decimal.NullDecimal {
	const attempts = 3

	for i := 1; ; i++ {
		token, err := s.tokenz.BalanceOf(ctx, wallet)
		if err == nil {
			return decimal.NewNullDecimal(token)
		}

		if i == attempts {
			s.logger.Warn("tokenz.BalanceOf", "wallet", wallet, "err", err)
			return decimal.NullDecimal{}
		}

		select {
		case <-ctx.Done():
			return decimal.NullDecimal{}
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		}
	}
}

// applyLedger writes the fiat mutation of c with a version checked update and
// returns the fiat balance after it.
func (s *service) applyLedger(ctx context.Context, c *core.Conversion) (decimal.Decimal, error) {
	if entry, err := s.accounts.FindEntry(ctx, c.Key); err == nil {
		return entry.Balance, nil
	} else if !store.IsErrNotFound(err) {
		return decimal.Zero, fmt.Errorf("accounts.FindEntry: %w", err)
	}

	account, err := s.accounts.Find(ctx, c.AccountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("accounts.Find: %w", err)
	}

	entry := &core.LedgerEntry{
		Ref:    c.Key,
		Amount: delta(c),
		Memo:   fmt.Sprintf("%s %s tx %s", c.Direction, c.Amount, c.TxHash),
	}

	err = s.accounts.UpdateBalance(ctx, account, account.Balance.Add(entry.Amount), entry)
	switch {
	case err == nil:
		return account.Balance, nil
	case errors.Is(err, core.ErrLedgerEntryExists):
		applied, err := s.accounts.FindEntry(ctx, c.Key)
		if err != nil {
			return decimal.Zero, fmt.Errorf("accounts.FindEntry: %w", err)
		}

		return applied.Balance, nil
	default:
		return decimal.Zero, fmt.Errorf("accounts.UpdateBalance: %w", err)
	}
}

// pending flags a conversion whose chain side effect happened without its
// ledger write. It is never silent: the record moves to
// ReconciliationPending and the condition is logged at error level.
func (s *service) pending(ctx context.Context, c *core.Conversion, cause error) error {
	c.Reason = cause.Error()
	if err := s.conversions.UpdatePhase(ctx, c, core.ConversionPhaseReconciliationPending); err != nil {
		s.logger.Error("conversions.UpdatePhase", "conversion", c.Key, "phase", core.ConversionPhaseReconciliationPending.String(), "err", err)
	}

	s.logger.Error("reconciliation pending",
		"conversion", c.Key,
		"account", c.AccountID,
		"tx", c.TxHash,
		"direction", c.Direction.String(),
		"amount", c.Amount,
		"err", cause,
	)

	return &core.Error{
		Kind:  core.KindReconciliationPending,
		Phase: core.ConversionPhaseReconciliationPending,
		Key:   c.Key,
		Err:   cause,
	}
}
