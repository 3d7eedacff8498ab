package core

import (
	"context"
	"time"
)

type BindingStatus uint8

const (
	_ BindingStatus = iota
	BindingStatusUnbound
	BindingStatusBound
	BindingStatusMismatched
)

func (s BindingStatus) String() string {
	switch s {
	case BindingStatusUnbound:
		return "Unbound"
	case BindingStatusBound:
		return "Bound"
	case BindingStatusMismatched:
		return "MismatchedWallet"
	default:
		return "Unknown"
	}
}

func (s BindingStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WalletBinding is derived from Account.Wallet and the transaction that
// verified it; it is never stored separately.
type WalletBinding struct {
	AccountID  string    `json:"account_id"`
	Wallet     string    `json:"wallet"`
	TxHash     string    `json:"tx_hash"`
	Block      uint64    `json:"block,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// CheckBinding compares wallet against the account's bound wallet. It performs
// no I/O.
func CheckBinding(account *Account, wallet string) BindingStatus {
	if !account.Bound() {
		return BindingStatusUnbound
	}

	if wallet != "" && NormalizeWallet(wallet) == account.Wallet {
		return BindingStatusBound
	}

	return BindingStatusMismatched
}

type BindingService interface {
	// VerifyAndBind submits the ownership proof for wallet and, once confirmed,
	// binds it to the account. proof is an optional wallet-signed raw
	// verification transaction.
	VerifyAndBind(ctx context.Context, account *Account, wallet string, proof []byte) (*WalletBinding, error)
}
