package account

import (
	"database/sql"

	"github.com/pandodao/token-bridge/core"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

var scanColumns = []string{
	"id",
	"created_at",
	"owner",
	"balance",
	"wallet",
	"wallet_tx",
	"version",
}

func scanAccount(scanner scanner, account *core.Account) error {
	var wallet sql.NullString

	if err := scanner.Scan(
		&account.ID,
		&account.CreatedAt,
		&account.Owner,
		&account.Balance,
		&wallet,
		&account.WalletTx,
		&account.Version,
	); err != nil {
		return err
	}

	account.Wallet = wallet.String
	return nil
}

var entryColumns = []string{
	"ref",
	"created_at",
	"account_id",
	"amount",
	"balance",
	"memo",
}

func scanEntry(scanner scanner, entry *core.LedgerEntry) error {
	return scanner.Scan(
		&entry.Ref,
		&entry.CreatedAt,
		&entry.AccountID,
		&entry.Amount,
		&entry.Balance,
		&entry.Memo,
	)
}

func nullWallet(wallet string) sql.NullString {
	return sql.NullString{String: wallet, Valid: wallet != ""}
}
