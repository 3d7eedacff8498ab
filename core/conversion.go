package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction uint8

const (
	_ Direction = iota
	DirectionFiatToToken
	DirectionTokenToFiat
)

func (d Direction) String() string {
	switch d {
	case DirectionFiatToToken:
		return "FiatToToken"
	case DirectionTokenToFiat:
		return "TokenToFiat"
	default:
		return "Unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}

	*d = v
	return nil
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "FiatToToken", "fiat_to_token", "mint":
		return DirectionFiatToToken, nil
	case "TokenToFiat", "token_to_fiat", "burn":
		return DirectionTokenToFiat, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

type ConversionPhase uint8

const (
	_ ConversionPhase = iota
	ConversionPhaseInitiated
	ConversionPhaseChainConfirmed
	ConversionPhaseLedgerApplied
	ConversionPhaseFailed
	ConversionPhaseReconciliationPending
)

func (p ConversionPhase) String() string {
	switch p {
	case ConversionPhaseInitiated:
		return "Initiated"
	case ConversionPhaseChainConfirmed:
		return "ChainConfirmed"
	case ConversionPhaseLedgerApplied:
		return "LedgerApplied"
	case ConversionPhaseFailed:
		return "Failed"
	case ConversionPhaseReconciliationPending:
		return "ReconciliationPending"
	default:
		return "Unknown"
	}
}

func (p ConversionPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether the phase ends the protocol for the caller.
// ReconciliationPending is terminal but still owned by the reconciler.
func (p ConversionPhase) Terminal() bool {
	switch p {
	case ConversionPhaseLedgerApplied, ConversionPhaseFailed, ConversionPhaseReconciliationPending:
		return true
	default:
		return false
	}
}

// ConversionRequest is what a caller asks for. Nonce distinguishes otherwise
// identical requests; reusing it makes the request a retry.
type ConversionRequest struct {
	Direction Direction       `json:"direction"`
	AccountID string          `json:"account_id"`
	Wallet    string          `json:"wallet"`
	Amount    decimal.Decimal `json:"amount"`
	Nonce     string          `json:"nonce"`
}

var idempotencyNamespace = uuid.MustParse("0f1c2d8e-6a61-4f5e-9d1b-4c0e2a7b9e11")

// IdempotencyKey derives the deterministic key of the request.
func (r *ConversionRequest) IdempotencyKey() string {
	memo := fmt.Sprintf("%s:%s:%s:%s", r.AccountID, r.Direction, r.Amount.String(), r.Nonce)
	return uuid.NewSHA1(idempotencyNamespace, []byte(memo)).String()
}

// Conversion is the recorded unit of work of a ConversionRequest. Its row is
// the idempotency record and the audit trail of the conversion.
type Conversion struct {
	ID        uint64          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Key       string          `json:"key"`
	Direction Direction       `json:"direction"`
	AccountID string          `json:"account_id"`
	Wallet    string          `json:"wallet"`
	Amount    decimal.Decimal `json:"amount"`
	Phase     ConversionPhase `json:"phase"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Block     uint64          `json:"block,omitempty"`
	Fiat      decimal.Decimal `json:"fiat"`
	// Token is the wallet's token balance read after the ledger write; it
	// stays null when the chain could not be read.
	Token  decimal.NullDecimal `json:"token"`
	Reason string              `json:"reason,omitempty"`
}

// Balances is the outcome of an applied conversion. Token is null when the
// balance could not be read from the chain.
type Balances struct {
	Fiat  decimal.Decimal     `json:"fiat"`
	Token decimal.NullDecimal `json:"token"`
}

type ConversionStore interface {
	// Create inserts the conversion in phase Initiated and fills its ID.
	Create(ctx context.Context, conversion *Conversion) error
	FindKey(ctx context.Context, key string) (*Conversion, error)
	// Attach records the submitted transaction of an Initiated conversion.
	Attach(ctx context.Context, conversion *Conversion, txHash string) error
	// UpdatePhase moves the conversion from its current phase to the given
	// one, failing if another writer moved it first. Fiat, Token, Block and
	// Reason are written along.
	UpdatePhase(ctx context.Context, conversion *Conversion, to ConversionPhase) error
	ListPhase(ctx context.Context, phase ConversionPhase, limit int) ([]*Conversion, error)
	ListFrom(ctx context.Context, offset uint64, limit int) ([]*Conversion, error)
	// ListOutstanding lists the conversions of an account whose chain
	// operation may have happened without its ledger write: those in
	// Initiated, ChainConfirmed or ReconciliationPending, and those Failed
	// with a transaction since failedSince.
	ListOutstanding(ctx context.Context, accountID string, failedSince time.Time) ([]*Conversion, error)
}

type ConversionService interface {
	Convert(ctx context.Context, req *ConversionRequest) (*Balances, error)
	// Reconcile re-attempts only the ledger write of a ReconciliationPending
	// conversion, using its recorded receipt as proof.
	Reconcile(ctx context.Context, key string) (*Conversion, error)
	// Recover resolves a conversion left in flight by a crashed process.
	Recover(ctx context.Context, conversion *Conversion) error
	Find(ctx context.Context, key string) (*Conversion, error)
}
