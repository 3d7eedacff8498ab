package identity

import (
	"context"
	"testing"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store/account"
	"github.com/pandodao/token-bridge/store/session"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletX = "0x1111111111111111111111111111111111111111"
	walletY = "0x2222222222222222222222222222222222222222"
)

func newService(t *testing.T, ttl time.Duration) (core.IdentityService, core.AccountStore) {
	t.Helper()

	db := storetest.DB(t)
	accounts := account.New(db)
	require.NoError(t, accounts.Create(context.Background(), &core.Account{
		ID:      "A",
		Owner:   "Alice",
		Balance: decimal.NewFromInt(1000),
	}))

	return New(accounts, session.New(db), Config{TTL: ttl}), accounts
}

func TestLoginResolve(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, time.Hour)

	_, err := s.Login(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	session, err := s.Login(ctx, "A")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	id, err := s.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "A", id.Account.ID)
	assert.Empty(t, id.Wallet)
	assert.Equal(t, core.BindingStatusUnbound, id.Binding())

	require.NoError(t, s.Logout(ctx, session.Token))
	_, err = s.Resolve(ctx, session.Token)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestResolveExpired(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, time.Millisecond)

	session, err := s.Login(ctx, "A")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = s.Resolve(ctx, session.Token)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	s, accounts := newService(t, time.Hour)

	session, err := s.Login(ctx, "A")
	require.NoError(t, err)

	_, err = s.Connect(ctx, session.Token, "not-a-wallet")
	assert.ErrorIs(t, err, core.ErrInvalidWallet)

	_, err = s.Connect(ctx, "missing", walletX)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	id, err := s.Connect(ctx, session.Token, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, walletX, id.Wallet)
	assert.Equal(t, core.BindingStatusUnbound, id.Binding(), "connecting never binds")

	require.NoError(t, accounts.BindWallet(ctx, "A", walletX, "0xproof"))

	id, err = s.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, core.BindingStatusBound, id.Binding())

	id, err = s.Connect(ctx, session.Token, walletY)
	require.NoError(t, err)
	assert.Equal(t, core.BindingStatusMismatched, id.Binding())
	assert.Equal(t, walletX, id.Account.Wallet)
}
