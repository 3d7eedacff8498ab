package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a fiat ledger entry owned by the Ledger Store.
//
// Wallet is set at most once and is unique across all accounts. Version is the
// optimistic concurrency token bumped by every balance write.
type Account struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Wallet    string          `json:"wallet,omitempty"`
	WalletTx  string          `json:"wallet_tx,omitempty"`
	Version   int64           `json:"version"`
}

func (a *Account) Bound() bool {
	return a.Wallet != ""
}

// LedgerEntry records one applied balance mutation. Ref is unique, so applying
// the same mutation twice is rejected by the store.
type LedgerEntry struct {
	Ref       string          `json:"ref"`
	CreatedAt time.Time       `json:"created_at"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Memo      string          `json:"memo,omitempty"`
}

type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindWallet(ctx context.Context, wallet string) (*Account, error)
	List(ctx context.Context, offset string, limit int) ([]*Account, error)
	// UpdateBalance sets the balance if account.Version is still current and
	// records entry in the same transaction. It returns ErrBalanceConflict on a
	// stale version and ErrLedgerEntryExists if entry.Ref was already applied.
	UpdateBalance(ctx context.Context, account *Account, balance decimal.Decimal, entry *LedgerEntry) error
	// BindWallet sets the wallet of an unbound account. It returns
	// ErrAccountAlreadyBound or ErrWalletAlreadyBound on conflicts.
	BindWallet(ctx context.Context, id, wallet, tx string) error
	FindEntry(ctx context.Context, ref string) (*LedgerEntry, error)
}

// NormalizeWallet lowercases a hex address. Addresses are compared in this form
// everywhere.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// Locker serializes work per key, such as per account id.
type Locker interface {
	// Lock blocks until key is free or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
