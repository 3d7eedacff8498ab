package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/metrics"
	"github.com/pandodao/token-bridge/store"
	"github.com/shopspring/decimal"
)

type Config struct {
	ConfirmTimeout time.Duration `valid:"required"`
	// FiatScale is the number of fractional digits a fiat amount may carry.
	FiatScale int32
	// StaleAfter is how long an in-flight conversion may sit untouched
	// before Recover resolves it from the chain.
	StaleAfter time.Duration `valid:"required"`
	// Window is how long a failed conversion with a transaction may still
	// confirm late. Its fiat stays held meanwhile.
	Window time.Duration
}

func New(
	accounts core.AccountStore,
	conversions core.ConversionStore,
	tokenz core.TokenService,
	locker core.Locker,
	logger *slog.Logger,
	cfg Config,
) core.ConversionService {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.FiatScale <= 0 {
		cfg.FiatScale = 2
	}

	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}

	return &service{
		accounts:    accounts,
		conversions: conversions,
		tokenz:      tokenz,
		locker:      locker,
		logger:      logger.With("service", "conversion"),
		metrics:     metrics.Bridge(),
		cfg:         cfg,
	}
}

type service struct {
	accounts    core.AccountStore
	conversions core.ConversionStore
	tokenz      core.TokenService
	locker      core.Locker
	logger      *slog.Logger
	metrics     *metrics.BridgeMetrics
	cfg         Config
}

func (s *service) Convert(ctx context.Context, req *core.ConversionRequest) (*core.Balances, error) {
	start := time.Now()
	balances, err := s.convert(ctx, req)

	outcome := "applied"
	if err != nil {
		outcome = core.KindOf(err).String()
	}

	s.metrics.ObserveConversion(req.Direction.String(), outcome, time.Since(start).Seconds())
	return balances, err
}

func (s *service) convert(ctx context.Context, req *core.ConversionRequest) (*core.Balances, error) {
	if err := s.validate(req); err != nil {
		return nil, core.NewError(core.KindValidation, err)
	}

	key := req.IdempotencyKey()
	wallet := core.NormalizeWallet(req.Wallet)
	logger := s.logger.With("conversion", key, "account", req.AccountID, "direction", req.Direction.String())

	unlock, err := s.locker.Lock(ctx, req.AccountID)
	if err != nil {
		return nil, &core.Error{Kind: core.KindStoreUnavailable, Key: key, Err: err}
	}

	defer unlock()

	account, err := s.accounts.Find(ctx, req.AccountID)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.NewError(core.KindValidation, core.ErrAccountNotFound)
		}

		logger.Error("accounts.Find", "err", err)
		return nil, &core.Error{Kind: core.KindStoreUnavailable, Key: key, Err: err}
	}

	switch core.CheckBinding(account, wallet) {
	case core.BindingStatusUnbound:
		return nil, core.NewError(core.KindValidation, core.ErrWalletNotBound)
	case core.BindingStatusMismatched:
		return nil, core.NewError(core.KindValidation, core.ErrWalletMismatch)
	}

	if prior, err := s.conversions.FindKey(ctx, key); err == nil {
		logger.Debug("idempotent replay", "phase", prior.Phase.String())
		return replay(prior)
	} else if !store.IsErrNotFound(err) {
		logger.Error("conversions.FindKey", "err", err)
		return nil, &core.Error{Kind: core.KindStoreUnavailable, Key: key, Err: err}
	}

	if err := s.checkBalance(ctx, account, wallet, req); err != nil {
		return nil, err
	}

	c := &core.Conversion{
		Key:       key,
		Direction: req.Direction,
		AccountID: account.ID,
		Wallet:    wallet,
		Amount:    req.Amount,
	}

	if err := s.conversions.Create(ctx, c); err != nil {
		logger.Error("conversions.Create", "err", err)
		return nil, &core.Error{Kind: core.KindStoreUnavailable, Key: key, Err: err}
	}

	tx, err := s.submit(ctx, c)
	if err != nil {
		logger.Error("submit", "err", err)
		return nil, s.fail(ctx, c, err)
	}

	// a submitted transaction is resolved to a recorded outcome even if the
	// caller goes away; ConfirmTimeout still bounds the wait
	ctx = context.WithoutCancel(ctx)

	logger = logger.With("tx", tx.Hash)
	logger.Info("chain operation submitted")

	if err := s.conversions.Attach(ctx, c, tx.Hash); err != nil {
		// the hash is written again with the next phase change
		logger.Warn("conversions.Attach", "err", err)
		c.TxHash = tx.Hash
	}

	receipt, err := s.tokenz.Await(ctx, tx, s.cfg.ConfirmTimeout)
	if err != nil {
		logger.Error("tokenz.Await", "err", err)
		if !errors.Is(err, core.ErrChainTimeout) {
			err = errors.Join(core.ErrChainTimeout, err)
		}

		return nil, s.fail(ctx, c, err)
	}

	if !receipt.Confirmed() {
		logger.Info("chain operation reverted", "reason", receipt.Reason)
		return nil, s.fail(ctx, c, fmt.Errorf("%w: %s", core.ErrChainRejected, receipt.Reason))
	}

	c.Block = receipt.Block
	if err := s.conversions.UpdatePhase(ctx, c, core.ConversionPhaseChainConfirmed); err != nil {
		logger.Error("conversions.UpdatePhase", "phase", core.ConversionPhaseChainConfirmed.String(), "err", err)
		return nil, s.pending(ctx, c, err)
	}

	return s.settle(ctx, c)
}

func (s *service) validate(req *core.ConversionRequest) error {
	switch req.Direction {
	case core.DirectionFiatToToken, core.DirectionTokenToFiat:
	default:
		return core.ErrUnknownDirection
	}

	if !req.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", core.ErrInvalidAmount)
	}

	if !req.Amount.Equal(req.Amount.Truncate(s.cfg.FiatScale)) {
		return fmt.Errorf("amount has more than %d decimals: %w", s.cfg.FiatScale, core.ErrInvalidAmount)
	}

	return nil
}

// checkBalance runs the balance precondition. The token balance is read from
// the chain, never from a cache.
func (s *service) checkBalance(ctx context.Context, account *core.Account, wallet string, req *core.ConversionRequest) error {
	switch req.Direction {
	case core.DirectionFiatToToken:
		held, err := s.held(ctx, account.ID)
		if err != nil {
			s.logger.Error("held", "account", account.ID, "err", err)
			return core.NewError(core.KindStoreUnavailable, err)
		}

		if req.Amount.GreaterThan(account.Balance.Sub(held)) {
			return core.NewError(core.KindValidation, core.ErrInsufficientFiat)
		}
	case core.DirectionTokenToFiat:
		balance, err := s.tokenz.BalanceOf(ctx, wallet)
		if err != nil {
			s.logger.Error("tokenz.BalanceOf", "wallet", wallet, "err", err)
			return core.NewError(core.KindChainFailed, err)
		}

		if req.Amount.GreaterThan(balance) {
			return core.NewError(core.KindValidation, core.ErrInsufficientToken)
		}
	}

	return nil
}

// held sums the fiat the account owes for tokens that are, or may still be,
// minted without their debit written.
func (s *service) held(ctx context.Context, accountID string) (decimal.Decimal, error) {
	outstanding, err := s.conversions.ListOutstanding(ctx, accountID, time.Now().Add(-s.cfg.Window))
	if err != nil {
		return decimal.Zero, fmt.Errorf("conversions.ListOutstanding: %w", err)
	}

	sum := decimal.Zero
	for _, c := range outstanding {
		if c.Direction != core.DirectionFiatToToken {
			continue
		}

		if c.Phase == core.ConversionPhaseFailed {
			// only a reverted mint is known to be void
			if receipt, err := s.tokenz.Receipt(ctx, c.TxHash); err == nil && !receipt.Confirmed() {
				continue
			}
		} else if _, err := s.accounts.FindEntry(ctx, c.Key); err == nil {
			// debited already, only the phase is behind
			continue
		} else if !store.IsErrNotFound(err) {
			return decimal.Zero, fmt.Errorf("accounts.FindEntry: %w", err)
		}

		sum = sum.Add(c.Amount)
	}

	return sum, nil
}

func (s *service) submit(ctx context.Context, c *core.Conversion) (*core.TokenTx, error) {
	call := &core.TokenCall{
		Method: core.TokenMethodMint,
		Wallet: c.Wallet,
		Amount: c.Amount,
		From:   s.tokenz.Operator(),
	}

	if c.Direction == core.DirectionTokenToFiat {
		call.Method = core.TokenMethodBurn
	}

	gasPrice, err := s.tokenz.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenz.GasPrice: %w", err)
	}

	call.GasPrice = gasPrice
	if call.GasLimit, err = s.tokenz.EstimateGas(ctx, call); err != nil {
		return nil, fmt.Errorf("tokenz.EstimateGas: %w", err)
	}

	return s.tokenz.Submit(ctx, call)
}

// fail ends an Initiated conversion whose chain operation did not confirm.
func (s *service) fail(ctx context.Context, c *core.Conversion, cause error) error {
	c.Reason = cause.Error()
	if err := s.conversions.UpdatePhase(context.WithoutCancel(ctx), c, core.ConversionPhaseFailed); err != nil {
		s.logger.Error("conversions.UpdatePhase", "conversion", c.Key, "phase", core.ConversionPhaseFailed.String(), "err", err)
	}

	return &core.Error{
		Kind:  core.KindChainFailed,
		Phase: core.ConversionPhaseFailed,
		Key:   c.Key,
		Err:   cause,
	}
}

// replay answers a request whose idempotency key was seen before.
func replay(c *core.Conversion) (*core.Balances, error) {
	switch c.Phase {
	case core.ConversionPhaseLedgerApplied:
		return &core.Balances{Fiat: c.Fiat, Token: c.Token}, nil
	case core.ConversionPhaseFailed:
		return nil, &core.Error{
			Kind:  core.KindChainFailed,
			Phase: c.Phase,
			Key:   c.Key,
			Err:   fmt.Errorf("conversion failed earlier: %s", c.Reason),
		}
	case core.ConversionPhaseReconciliationPending, core.ConversionPhaseChainConfirmed:
		return nil, &core.Error{
			Kind:  core.KindReconciliationPending,
			Phase: c.Phase,
			Key:   c.Key,
			Err:   core.ErrConversionInFlight,
		}
	default:
		return nil, &core.Error{
			Kind:  core.KindStoreUnavailable,
			Phase: c.Phase,
			Key:   c.Key,
			Err:   core.ErrConversionInFlight,
		}
	}
}

func (s *service) Find(ctx context.Context, key string) (*core.Conversion, error) {
	c, err := s.conversions.FindKey(ctx, key)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.NewError(core.KindValidation, core.ErrConversionNotFound)
		}

		return nil, core.NewError(core.KindStoreUnavailable, err)
	}

	return c, nil
}

func delta(c *core.Conversion) decimal.Decimal {
	if c.Direction == core.DirectionFiatToToken {
		return c.Amount.Neg()
	}

	return c.Amount
}
