package conversion

import (
	"github.com/pandodao/token-bridge/core"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

var scanColumns = []string{
	"id",
	"created_at",
	"updated_at",
	"idempotency_key",
	"direction",
	"account_id",
	"wallet",
	"amount",
	"phase",
	"tx_hash",
	"block_number",
	"fiat",
	"token",
	"reason",
}

func scanConversion(scanner scanner, c *core.Conversion) error {
	return scanner.Scan(
		&c.ID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Key,
		&c.Direction,
		&c.AccountID,
		&c.Wallet,
		&c.Amount,
		&c.Phase,
		&c.TxHash,
		&c.Block,
		&c.Fiat,
		&c.Token,
		&c.Reason,
	)
}
