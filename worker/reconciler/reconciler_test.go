package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/service/conversion"
	"github.com/pandodao/token-bridge/service/locker"
	"github.com/pandodao/token-bridge/service/token/tokentest"
	"github.com/pandodao/token-bridge/store/account"
	storeconversion "github.com/pandodao/token-bridge/store/conversion"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletX = "0x1111111111111111111111111111111111111111"

type flakyAccounts struct {
	core.AccountStore
	down atomic.Bool
}

func (f *flakyAccounts) UpdateBalance(ctx context.Context, a *core.Account, balance decimal.Decimal, entry *core.LedgerEntry) error {
	if f.down.Load() {
		return errors.New("store unreachable")
	}

	return f.AccountStore.UpdateBalance(ctx, a, balance, entry)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := storetest.DB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := &flakyAccounts{AccountStore: account.New(db)}
	require.NoError(t, accounts.Create(ctx, &core.Account{ID: "A", Balance: decimal.NewFromInt(1000)}))
	require.NoError(t, accounts.BindWallet(ctx, "A", walletX, "0xproof"))

	conversions := storeconversion.New(db)
	conversionz := conversion.New(accounts, conversions, tokentest.New(), locker.New(), logger, conversion.Config{
		ConfirmTimeout: time.Second,
		StaleAfter:     time.Minute,
	})

	w := New(conversions, conversionz, logger)
	assert.Error(t, w.run(ctx), "nothing pending")

	accounts.down.Store(true)
	req := &core.ConversionRequest{
		Direction: core.DirectionFiatToToken,
		AccountID: "A",
		Wallet:    walletX,
		Amount:    decimal.NewFromInt(300),
		Nonce:     "1",
	}

	_, err := conversionz.Convert(ctx, req)
	require.True(t, core.IsKind(err, core.KindReconciliationPending), "err = %v", err)

	assert.Error(t, w.run(ctx), "ledger still down")

	accounts.down.Store(false)
	require.NoError(t, w.run(ctx))

	c, err := conversions.FindKey(ctx, req.IdempotencyKey())
	require.NoError(t, err)
	assert.Equal(t, core.ConversionPhaseLedgerApplied, c.Phase)

	a, err := accounts.Find(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(700)), "balance = %s", a.Balance)

	assert.Error(t, w.run(ctx), "drained")
}
