package binding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/metrics"
	"github.com/pandodao/token-bridge/store"
)

type Config struct {
	ConfirmTimeout time.Duration `valid:"required"`
}

func New(
	accounts core.AccountStore,
	tokenz core.TokenService,
	locker core.Locker,
	logger *slog.Logger,
	cfg Config,
) core.BindingService {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &service{
		accounts: accounts,
		tokenz:   tokenz,
		locker:   locker,
		logger:   logger.With("service", "binding"),
		metrics:  metrics.Bridge(),
		cfg:      cfg,
	}
}

type service struct {
	accounts core.AccountStore
	tokenz   core.TokenService
	locker   core.Locker
	logger   *slog.Logger
	metrics  *metrics.BridgeMetrics
	cfg      Config
}

func (s *service) VerifyAndBind(ctx context.Context, account *core.Account, wallet string, proof []byte) (*core.WalletBinding, error) {
	binding, err := s.verifyAndBind(ctx, account, core.NormalizeWallet(wallet), proof)

	outcome := "bound"
	if err != nil {
		outcome = core.KindOf(err).String()
	}

	s.metrics.ObserveBinding(outcome)
	return binding, err
}

func (s *service) verifyAndBind(ctx context.Context, account *core.Account, wallet string, proof []byte) (*core.WalletBinding, error) {
	logger := s.logger.With("account", account.ID, "wallet", wallet)

	if !common.IsHexAddress(wallet) {
		return nil, core.NewError(core.KindValidation, core.ErrInvalidWallet)
	}

	unlock, err := s.locker.Lock(ctx, account.ID)
	if err != nil {
		return nil, core.NewError(core.KindStoreUnavailable, err)
	}

	defer unlock()

	current, err := s.accounts.Find(ctx, account.ID)
	if err != nil {
		if store.IsErrNotFound(err) {
			return nil, core.NewError(core.KindValidation, core.ErrAccountNotFound)
		}

		logger.Error("accounts.Find", "err", err)
		return nil, core.NewError(core.KindStoreUnavailable, err)
	}

	switch core.CheckBinding(current, wallet) {
	case core.BindingStatusBound:
		logger.Debug("wallet already bound to this account")
		*account = *current
		return viewBinding(current, 0), nil
	case core.BindingStatusMismatched:
		return nil, core.NewError(core.KindBindingConflict, core.ErrAccountAlreadyBound)
	}

	if err := s.checkWalletFree(ctx, account.ID, wallet); err != nil {
		return nil, err
	}

	call := &core.TokenCall{
		Method: core.TokenMethodVerifyUser,
		Wallet: wallet,
		From:   wallet,
	}

	tx, err := s.submit(ctx, call, proof)
	if err != nil {
		logger.Error("submit verification", "err", err)
		return nil, core.NewError(core.KindChainFailed, errors.Join(core.ErrChainRejected, err))
	}

	// the verification may still confirm after the caller leaves; wait for
	// it up to ConfirmTimeout either way
	ctx = context.WithoutCancel(ctx)

	logger = logger.With("tx", tx.Hash)
	logger.Info("verification submitted")

	receipt, err := s.tokenz.Await(ctx, tx, s.cfg.ConfirmTimeout)
	if err != nil {
		logger.Error("tokenz.Await", "err", err)
		if !errors.Is(err, core.ErrChainTimeout) {
			err = errors.Join(core.ErrChainTimeout, err)
		}

		return nil, core.NewError(core.KindChainFailed, err)
	}

	if !receipt.Confirmed() {
		logger.Info("verification reverted", "reason", receipt.Reason)
		return nil, core.NewError(core.KindChainFailed, core.ErrChainRejected)
	}

	if err := s.checkWalletFree(ctx, account.ID, wallet); err != nil {
		logger.Warn("wallet bound elsewhere while verifying, on-chain proof left orphaned", "err", err)
		return nil, err
	}

	if err := s.accounts.BindWallet(ctx, account.ID, wallet, receipt.TxHash); err != nil {
		if errors.Is(err, core.ErrWalletAlreadyBound) || errors.Is(err, core.ErrAccountAlreadyBound) {
			logger.Warn("binding lost the race, on-chain proof left orphaned", "err", err)
			return nil, core.NewError(core.KindBindingConflict, err)
		}

		logger.Error("accounts.BindWallet", "err", err)
		return nil, core.NewError(core.KindStoreUnavailable, err)
	}

	current.Wallet = wallet
	current.WalletTx = receipt.TxHash
	*account = *current

	logger.Info("wallet bound", "block", receipt.Block)
	return viewBinding(current, receipt.Block), nil
}

func (s *service) checkWalletFree(ctx context.Context, accountID, wallet string) error {
	other, err := s.accounts.FindWallet(ctx, wallet)
	switch {
	case err == nil && other.ID != accountID:
		return core.NewError(core.KindBindingConflict, core.ErrWalletAlreadyBound)
	case err == nil, store.IsErrNotFound(err):
		return nil
	default:
		s.logger.Error("accounts.FindWallet", "err", err)
		return core.NewError(core.KindStoreUnavailable, err)
	}
}

func (s *service) submit(ctx context.Context, call *core.TokenCall, proof []byte) (*core.TokenTx, error) {
	if len(proof) > 0 {
		return s.tokenz.Relay(ctx, proof, call)
	}

	gasPrice, err := s.tokenz.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	call.GasPrice = gasPrice
	if call.GasLimit, err = s.tokenz.EstimateGas(ctx, call); err != nil {
		return nil, err
	}

	return s.tokenz.Submit(ctx, call)
}

func viewBinding(account *core.Account, block uint64) *core.WalletBinding {
	return &core.WalletBinding{
		AccountID:  account.ID,
		Wallet:     account.Wallet,
		TxHash:     account.WalletTx,
		Block:      block,
		VerifiedAt: time.Now(),
	}
}
