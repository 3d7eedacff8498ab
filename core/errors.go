package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidWallet       = errors.New("invalid wallet address")
	ErrInsufficientFiat    = errors.New("insufficient fiat balance")
	ErrInsufficientToken   = errors.New("insufficient token balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrWalletNotBound      = errors.New("wallet not bound")
	ErrWalletMismatch      = errors.New("wallet does not match bound wallet")
	ErrWalletAlreadyBound  = errors.New("wallet already bound to another account")
	ErrAccountAlreadyBound = errors.New("account already bound to another wallet")
	ErrChainRejected       = errors.New("chain transaction reverted")
	ErrChainTimeout        = errors.New("chain confirmation timed out")
	ErrReceiptNotFound     = errors.New("receipt not found")
	ErrBalanceConflict     = errors.New("balance changed concurrently")
	ErrLedgerEntryExists   = errors.New("ledger entry already applied")
	ErrConversionInFlight  = errors.New("conversion still in flight")
	ErrConversionNotFound  = errors.New("conversion not found")
	ErrUnknownDirection    = errors.New("unknown conversion direction")
	ErrSessionNotFound     = errors.New("session not found")
)

type ErrorKind uint8

const (
	_ ErrorKind = iota
	// KindValidation rejects bad input before any side effect.
	KindValidation
	// KindBindingConflict rejects a wallet or account bound elsewhere before
	// any ledger side effect.
	KindBindingConflict
	// KindChainFailed means the chain operation reverted or timed out before
	// confirmation. Nothing was applied; a fresh request may be retried.
	KindChainFailed
	// KindReconciliationPending means the chain side effect happened but the
	// ledger write did not. Never resubmit as a new conversion.
	KindReconciliationPending
	// KindStoreUnavailable is a transient infrastructure failure while the
	// request is still Initiated.
	KindStoreUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindBindingConflict:
		return "BindingConflict"
	case KindChainFailed:
		return "ChainOperationFailed"
	case KindReconciliationPending:
		return "ReconciliationPending"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	default:
		return "Unknown"
	}
}

// Error carries enough context to tell "nothing happened" from "the chain
// side effect happened, do not resubmit".
type Error struct {
	Kind  ErrorKind
	Phase ConversionPhase
	Key   string
	Err   error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (phase %s, key %s): %v", e.Kind, e.Phase, e.Key, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the whole operation.
func (e *Error) Retryable() bool {
	return e.Kind == KindChainFailed || e.Kind == KindStoreUnavailable
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
