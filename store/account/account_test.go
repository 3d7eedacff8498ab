package account

import (
	"context"
	"errors"
	"testing"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/shopspring/decimal"
)

const (
	walletX = "0x1111111111111111111111111111111111111111"
	walletY = "0x2222222222222222222222222222222222222222"
)

func newAccount(t *testing.T, s core.AccountStore, id, balance string) *core.Account {
	t.Helper()

	account := &core.Account{
		ID:      id,
		Owner:   "owner " + id,
		Balance: decimal.RequireFromString(balance),
	}

	if err := s.Create(context.Background(), account); err != nil {
		t.Fatalf("Create(%s): %v", id, err)
	}

	return account
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.DB(t))
	newAccount(t, s, "A", "1000.00")

	account, err := s.Find(ctx, "A")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if !account.Balance.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("Balance = %s, want 1000", account.Balance)
	}

	if account.Bound() {
		t.Errorf("new account should be unbound, got wallet %q", account.Wallet)
	}

	if _, err := s.Find(ctx, "missing"); !store.IsErrNotFound(err) {
		t.Errorf("Find(missing) err = %v, want not found", err)
	}
}

func TestUpdateBalance(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.DB(t))
	newAccount(t, s, "A", "1000.00")

	account, _ := s.Find(ctx, "A")
	stale := *account

	entry := &core.LedgerEntry{Ref: "k1", Amount: decimal.RequireFromString("-300")}
	if err := s.UpdateBalance(ctx, account, decimal.RequireFromString("700.00"), entry); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}

	if account.Version != stale.Version+1 {
		t.Errorf("Version = %d, want %d", account.Version, stale.Version+1)
	}

	t.Run("stale version conflicts", func(t *testing.T) {
		err := s.UpdateBalance(ctx, &stale, decimal.RequireFromString("500"), &core.LedgerEntry{Ref: "k2"})
		if !errors.Is(err, core.ErrBalanceConflict) {
			t.Errorf("err = %v, want ErrBalanceConflict", err)
		}
	})

	t.Run("same ref applies once", func(t *testing.T) {
		fresh, _ := s.Find(ctx, "A")
		err := s.UpdateBalance(ctx, fresh, decimal.RequireFromString("400"), &core.LedgerEntry{Ref: "k1"})
		if !errors.Is(err, core.ErrLedgerEntryExists) {
			t.Errorf("err = %v, want ErrLedgerEntryExists", err)
		}
	})

	t.Run("missing account", func(t *testing.T) {
		err := s.UpdateBalance(ctx, &core.Account{ID: "missing"}, decimal.NewFromInt(1), &core.LedgerEntry{Ref: "k3"})
		if !store.IsErrNotFound(err) {
			t.Errorf("err = %v, want not found", err)
		}
	})

	t.Run("negative balance", func(t *testing.T) {
		fresh, _ := s.Find(ctx, "A")
		err := s.UpdateBalance(ctx, fresh, decimal.RequireFromString("-1"), &core.LedgerEntry{Ref: "k4"})
		if !errors.Is(err, core.ErrInsufficientFiat) {
			t.Errorf("err = %v, want ErrInsufficientFiat", err)
		}
	})

	t.Run("cancelled caller writes nothing", func(t *testing.T) {
		fresh, _ := s.Find(ctx, "A")
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := s.UpdateBalance(cancelled, fresh, decimal.RequireFromString("100"), &core.LedgerEntry{Ref: "k5"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}

		if _, err := s.FindEntry(ctx, "k5"); !store.IsErrNotFound(err) {
			t.Errorf("FindEntry(k5) err = %v, want not found", err)
		}
	})

	got, _ := s.Find(ctx, "A")
	if !got.Balance.Equal(decimal.RequireFromString("700")) {
		t.Errorf("Balance = %s, want 700", got.Balance)
	}

	e, err := s.FindEntry(ctx, "k1")
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}

	if e.AccountID != "A" || !e.Balance.Equal(decimal.RequireFromString("700")) {
		t.Errorf("entry = %+v", e)
	}
}

func TestBindWallet(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.DB(t))
	newAccount(t, s, "A", "10")
	newAccount(t, s, "B", "10")

	if err := s.BindWallet(ctx, "A", "0x1111111111111111111111111111111111111111", "0xtx"); err != nil {
		t.Fatalf("BindWallet: %v", err)
	}

	tests := []struct {
		name   string
		id     string
		wallet string
		want   error
	}{
		{"same binding again", "A", walletX, nil},
		{"account bound to another wallet", "A", walletY, core.ErrAccountAlreadyBound},
		{"wallet bound to another account", "B", walletX, core.ErrWalletAlreadyBound},
		{"empty wallet", "B", "", core.ErrInvalidWallet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.BindWallet(ctx, tt.id, tt.wallet, "0xtx2"); !errors.Is(err, tt.want) {
				t.Errorf("BindWallet() err = %v, want %v", err, tt.want)
			}
		})
	}

	a, _ := s.FindWallet(ctx, walletX)
	if a == nil || a.ID != "A" || a.WalletTx != "0xtx" {
		t.Errorf("FindWallet = %+v", a)
	}

	b, _ := s.Find(ctx, "B")
	if b.Bound() {
		t.Errorf("B should stay unbound, got %q", b.Wallet)
	}

	if err := s.BindWallet(ctx, "missing", walletY, "0xtx"); !store.IsErrNotFound(err) {
		t.Errorf("BindWallet(missing) err = %v, want not found", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := New(storetest.DB(t))
	for _, id := range []string{"C", "A", "B"} {
		newAccount(t, s, id, "1")
	}

	accounts, err := s.List(ctx, "A", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(accounts) != 2 || accounts[0].ID != "B" || accounts[1].ID != "C" {
		t.Errorf("List = %v", accounts)
	}
}
