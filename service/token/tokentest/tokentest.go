// Package tokentest provides an in-memory core.TokenService for tests.
package tokentest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/shopspring/decimal"
)

// Outcome decides how a submitted transaction ends.
type Outcome int

const (
	Confirm Outcome = iota
	Revert
	Timeout
	// TimeoutThenConfirm times out the wait but confirms the transaction,
	// as a slow chain would.
	TimeoutThenConfirm
)

const Operator = "0x00000000000000000000000000000000000000aa"

type tx struct {
	call    core.TokenCall
	outcome Outcome
	block   uint64
}

// Service mints and burns on an in-memory balance table.
type Service struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	verified map[string]bool
	txs      map[string]*tx
	outcomes []Outcome
	block    uint64

	Calls       []core.TokenCall
	BalanceErr  error
	SubmitErr   error
	GasPriceVal *big.Int
}

func New() *Service {
	return &Service{
		balances:    map[string]decimal.Decimal{},
		verified:    map[string]bool{},
		txs:         map[string]*tx{},
		GasPriceVal: big.NewInt(1_000_000_000),
	}
}

// Next queues outcomes for the following submissions; Confirm is the default.
func (s *Service) Next(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcomes...)
}

func (s *Service) SetBalance(wallet string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[core.NormalizeWallet(wallet)] = amount
}

func (s *Service) Balance(wallet string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[core.NormalizeWallet(wallet)]
}

func (s *Service) Verified(wallet string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified[core.NormalizeWallet(wallet)]
}

func (s *Service) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

func (s *Service) Operator() string {
	return Operator
}

func (s *Service) BalanceOf(ctx context.Context, wallet string) (decimal.Decimal, error) {
	if s.BalanceErr != nil {
		return decimal.Zero, s.BalanceErr
	}

	return s.Balance(wallet), nil
}

func (s *Service) GasPrice(ctx context.Context) (*big.Int, error) {
	return s.GasPriceVal, nil
}

func (s *Service) EstimateGas(ctx context.Context, call *core.TokenCall) (uint64, error) {
	if call.GasPrice == nil {
		return 0, errors.New("gas price must be fetched before estimating")
	}

	return 60_000, nil
}

func (s *Service) Submit(ctx context.Context, call *core.TokenCall) (*core.TokenTx, error) {
	if call.GasLimit == 0 || call.GasPrice == nil {
		return nil, errors.New("gas limit and gas price are required")
	}

	return s.send(call)
}

func (s *Service) Relay(ctx context.Context, raw []byte, call *core.TokenCall) (*core.TokenTx, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty proof")
	}

	return s.send(call)
}

func (s *Service) send(call *core.TokenCall) (*core.TokenTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}

	s.Calls = append(s.Calls, *call)

	outcome := Confirm
	if len(s.outcomes) > 0 {
		outcome, s.outcomes = s.outcomes[0], s.outcomes[1:]
	}

	s.block++
	hash := fmt.Sprintf("0x%064x", len(s.Calls))
	t := &tx{call: *call, outcome: outcome, block: s.block}
	s.txs[hash] = t

	if outcome == Confirm || outcome == TimeoutThenConfirm {
		s.apply(&t.call)
	}

	return &core.TokenTx{Hash: hash, From: call.From, Nonce: uint64(len(s.Calls)), SentAt: time.Now()}, nil
}

func (s *Service) apply(call *core.TokenCall) {
	wallet := core.NormalizeWallet(call.Wallet)
	switch call.Method {
	case core.TokenMethodMint:
		s.balances[wallet] = s.balances[wallet].Add(call.Amount)
	case core.TokenMethodBurn:
		s.balances[wallet] = s.balances[wallet].Sub(call.Amount)
	case core.TokenMethodVerifyUser:
		s.verified[wallet] = true
	}
}

func (s *Service) Await(ctx context.Context, t *core.TokenTx, timeout time.Duration) (*core.TokenReceipt, error) {
	s.mu.Lock()
	v, ok := s.txs[t.Hash]
	s.mu.Unlock()

	if !ok {
		return nil, core.ErrReceiptNotFound
	}

	switch v.outcome {
	case Timeout, TimeoutThenConfirm:
		return nil, fmt.Errorf("tx %s: %w", t.Hash, core.ErrChainTimeout)
	}

	return s.Receipt(ctx, t.Hash)
}

func (s *Service) Receipt(ctx context.Context, hash string) (*core.TokenReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.txs[hash]
	if !ok || v.outcome == Timeout {
		return nil, core.ErrReceiptNotFound
	}

	r := &core.TokenReceipt{TxHash: hash, Status: core.ReceiptStatusConfirmed, Block: v.block}
	if v.outcome == Revert {
		r.Status = core.ReceiptStatusReverted
		r.Reason = "execution reverted"
	}

	return r, nil
}
