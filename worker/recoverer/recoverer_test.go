package recoverer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/service/conversion"
	"github.com/pandodao/token-bridge/service/locker"
	"github.com/pandodao/token-bridge/service/token/tokentest"
	"github.com/pandodao/token-bridge/store/account"
	storeconversion "github.com/pandodao/token-bridge/store/conversion"
	"github.com/pandodao/token-bridge/store/property"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletX = "0x1111111111111111111111111111111111111111"

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := storetest.DB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := account.New(db)
	require.NoError(t, accounts.Create(ctx, &core.Account{ID: "A", Balance: decimal.NewFromInt(1000)}))
	require.NoError(t, accounts.BindWallet(ctx, "A", walletX, "0xproof"))

	tokenz := tokentest.New()
	conversions := storeconversion.New(db)
	properties := property.New(db)
	conversionz := conversion.New(accounts, conversions, tokenz, locker.New(), logger, conversion.Config{
		ConfirmTimeout: time.Second,
		StaleAfter:     time.Nanosecond,
	})

	newConversion := func(key string) *core.Conversion {
		c := &core.Conversion{
			Key:       key,
			Direction: core.DirectionFiatToToken,
			AccountID: "A",
			Wallet:    walletX,
			Amount:    decimal.NewFromInt(100),
		}
		require.NoError(t, conversions.Create(ctx, c))
		return c
	}

	// 1: already applied
	applied := newConversion("applied")
	require.NoError(t, conversions.UpdatePhase(ctx, applied, core.ConversionPhaseLedgerApplied))

	// 2: crashed after submitting a mint that confirmed
	crashed := newConversion("crashed")
	tx, err := tokenz.Submit(ctx, &core.TokenCall{
		Method:   core.TokenMethodMint,
		Wallet:   walletX,
		Amount:   crashed.Amount,
		From:     tokentest.Operator,
		GasLimit: 60_000,
		GasPrice: tokenz.GasPriceVal,
	})
	require.NoError(t, err)
	require.NoError(t, conversions.Attach(ctx, crashed, tx.Hash))

	// 3: failed before a transaction existed
	failed := newConversion("failed")
	failed.Reason = "rejected"
	require.NoError(t, conversions.UpdatePhase(ctx, failed, core.ConversionPhaseFailed))

	w := New(conversions, conversionz, properties, logger, Config{Window: time.Hour})

	cursor := func() uint64 {
		var offset uint64
		require.NoError(t, properties.Get(ctx, propertyRecoverOffset, &offset))
		return offset
	}

	require.NoError(t, w.run(ctx))
	assert.Equal(t, applied.ID, cursor(), "cursor stops before the recovered conversion")

	c, err := conversions.FindKey(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, core.ConversionPhaseLedgerApplied, c.Phase)

	a, err := accounts.Find(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(900)), "balance = %s", a.Balance)

	require.NoError(t, w.run(ctx))
	assert.Equal(t, failed.ID, cursor())

	assert.Error(t, w.run(ctx), "nothing after the cursor")
}
