package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
	"github.com/shopspring/decimal"
	"github.com/tsenart/nap"
)

func New(db *nap.DB) core.AccountStore {
	return &accountStore{db: db}
}

type accountStore struct {
	db *nap.DB
}

func (s *accountStore) Create(ctx context.Context, account *core.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	account.Wallet = core.NormalizeWallet(account.Wallet)

	b := sq.Insert("accounts").
		Columns("id", "created_at", "owner", "balance", "wallet", "wallet_tx", "version").
		Values(account.ID, account.CreatedAt, account.Owner, account.Balance, nullWallet(account.Wallet), account.WalletTx, account.Version)

	_, err := b.RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *accountStore) Find(ctx context.Context, id string) (*core.Account, error) {
	return findAccount(ctx, s.db, sq.Eq{"id": id})
}

func (s *accountStore) FindWallet(ctx context.Context, wallet string) (*core.Account, error) {
	return findAccount(ctx, s.db, sq.Eq{"wallet": core.NormalizeWallet(wallet)})
}

func findAccount(ctx context.Context, q rowQuerier, pred sq.Eq) (*core.Account, error) {
	stmt, args := sq.Select(scanColumns...).From("accounts").Where(pred).MustSql()

	var account core.Account
	if err := scanAccount(q.QueryRowContext(ctx, stmt, args...), &account); err != nil {
		return nil, err
	}

	return &account, nil
}

func (s *accountStore) List(ctx context.Context, offset string, limit int) ([]*core.Account, error) {
	b := sq.Select(scanColumns...).
		From("accounts").
		Where(sq.Gt{"id": offset}).
		OrderBy("id").
		Limit(uint64(limit))

	rows, err := b.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var accounts []*core.Account
	for rows.Next() {
		var account core.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, err
		}

		accounts = append(accounts, &account)
	}

	return accounts, rows.Err()
}

func (s *accountStore) UpdateBalance(ctx context.Context, account *core.Account, balance decimal.Decimal, entry *core.LedgerEntry) error {
	if balance.IsNegative() {
		return fmt.Errorf("negative balance %s: %w", balance, core.ErrInsufficientFiat)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	if _, err := findEntry(ctx, tx, entry.Ref); err == nil {
		return core.ErrLedgerEntryExists
	} else if !store.IsErrNotFound(err) {
		return err
	}

	if err := updateBalance(ctx, tx, account, balance); err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	entry.AccountID = account.ID
	entry.Balance = balance
	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	account.Balance = balance
	account.Version++
	return nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, account *core.Account, balance decimal.Decimal) error {
	b := sq.Update("accounts").
		Set("balance", balance).
		Set("version", sq.Expr("version + 1")).
		Where("id = ? AND version = ?", account.ID, account.Version)

	r, err := b.RunWith(tx).ExecContext(ctx)
	if err != nil {
		return err
	}

	n, err := r.RowsAffected()
	if err != nil {
		return err
	}

	if n > 0 {
		return nil
	}

	// tell a stale version apart from a missing account
	var id string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM accounts WHERE id = ?", account.ID).Scan(&id); err != nil {
		return err
	}

	return core.ErrBalanceConflict
}

func (s *accountStore) BindWallet(ctx context.Context, id, wallet, txHash string) error {
	wallet = core.NormalizeWallet(wallet)
	if wallet == "" {
		return core.ErrInvalidWallet
	}

	b := sq.Update("accounts").
		Set("wallet", wallet).
		Set("wallet_tx", txHash).
		Where(sq.Eq{"id": id, "wallet": nil})

	r, err := b.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		// wallet column is unique
		if other, findErr := s.FindWallet(ctx, wallet); findErr == nil && other.ID != id {
			return core.ErrWalletAlreadyBound
		}

		return err
	}

	n, err := r.RowsAffected()
	if err != nil {
		return err
	}

	if n > 0 {
		return nil
	}

	account, err := s.Find(ctx, id)
	if err != nil {
		return err
	}

	if account.Wallet == wallet {
		return nil
	}

	return core.ErrAccountAlreadyBound
}

func (s *accountStore) FindEntry(ctx context.Context, ref string) (*core.LedgerEntry, error) {
	return findEntry(ctx, s.db, ref)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func findEntry(ctx context.Context, q rowQuerier, ref string) (*core.LedgerEntry, error) {
	stmt, args := sq.Select(entryColumns...).
		From("ledger_entries").
		Where(sq.Eq{"ref": ref}).
		MustSql()

	var entry core.LedgerEntry
	if err := scanEntry(q.QueryRowContext(ctx, stmt, args...), &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry *core.LedgerEntry) error {
	b := sq.Insert("ledger_entries").
		Columns(entryColumns...).
		Values(entry.Ref, entry.CreatedAt, entry.AccountID, entry.Amount, entry.Balance, entry.Memo)

	_, err := b.RunWith(tx).ExecContext(ctx)
	if err != nil {
		if store.IsErrDuplicate(err) {
			return core.ErrLedgerEntryExists
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}
