package core

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Token contract methods the bridge invokes.
const (
	TokenMethodMint       = "mint"
	TokenMethodBurn       = "burn"
	TokenMethodVerifyUser = "verifyUser"
)

type TokenCall struct {
	Method   string          `json:"method"`
	Wallet   string          `json:"wallet"`
	Amount   decimal.Decimal `json:"amount"`
	From     string          `json:"from"`
	GasLimit uint64          `json:"gas_limit"`
	GasPrice *big.Int        `json:"gas_price"`
}

type TokenTx struct {
	Hash   string    `json:"hash"`
	From   string    `json:"from"`
	Nonce  uint64    `json:"nonce"`
	SentAt time.Time `json:"sent_at"`
}

type ReceiptStatus uint8

const (
	_ ReceiptStatus = iota
	ReceiptStatusConfirmed
	ReceiptStatusReverted
)

type TokenReceipt struct {
	TxHash  string        `json:"tx_hash"`
	Status  ReceiptStatus `json:"status"`
	Block   uint64        `json:"block"`
	GasUsed uint64        `json:"gas_used"`
	Reason  string        `json:"reason,omitempty"`
}

func (r *TokenReceipt) Confirmed() bool {
	return r.Status == ReceiptStatusConfirmed
}

// TokenService is the chain client of the token contract.
type TokenService interface {
	Operator() string
	BalanceOf(ctx context.Context, wallet string) (decimal.Decimal, error)
	// GasPrice returns the legacy gas price; the target network has no fee
	// market.
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call *TokenCall) (uint64, error)
	Submit(ctx context.Context, call *TokenCall) (*TokenTx, error)
	// Relay broadcasts a transaction signed by the wallet itself after
	// checking that it encodes call.
	Relay(ctx context.Context, raw []byte, call *TokenCall) (*TokenTx, error)
	// Await blocks until tx is confirmed or reverted. It returns
	// ErrChainTimeout when no receipt arrives within timeout.
	Await(ctx context.Context, tx *TokenTx, timeout time.Duration) (*TokenReceipt, error)
	// Receipt returns the current receipt of txHash, ErrReceiptNotFound if
	// the transaction is unknown or still pending.
	Receipt(ctx context.Context, txHash string) (*TokenReceipt, error)
}
