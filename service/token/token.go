package token

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pandodao/token-bridge/core"
	"github.com/shopspring/decimal"
	"github.com/zyedidia/generic/cache"
)

// Client is the subset of ethclient.Client the token service needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type Config struct {
	Contract      string `valid:"required"`
	Operator      string `valid:"required"`
	ChainID       int64
	Confirmations uint64
	PollInterval  time.Duration
}

func New(client Client, keys []*ecdsa.PrivateKey, cfg Config) core.TokenService {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if !common.IsHexAddress(cfg.Contract) || !common.IsHexAddress(cfg.Operator) {
		panic(fmt.Errorf("invalid token contract %q or operator %q", cfg.Contract, cfg.Operator))
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	s := &service{
		client:   client,
		contract: common.HexToAddress(cfg.Contract),
		operator: common.HexToAddress(cfg.Operator),
		cfg:      cfg,
		keys:     make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
		senders:  make(map[common.Address]*sync.Mutex),
		receipts: cache.New[common.Hash, *core.TokenReceipt](1024),
	}

	if cfg.ChainID > 0 {
		s.chainID = big.NewInt(cfg.ChainID)
	}

	for _, key := range keys {
		s.keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	}

	return s
}

type service struct {
	client   Client
	contract common.Address
	operator common.Address
	cfg      Config
	keys     map[common.Address]*ecdsa.PrivateKey

	mux      sync.Mutex
	chainID  *big.Int
	decimals int32
	senders  map[common.Address]*sync.Mutex
	receipts *cache.Cache[common.Hash, *core.TokenReceipt]
}

func (s *service) Operator() string {
	return core.NormalizeWallet(s.operator.Hex())
}

func (s *service) getChainID(ctx context.Context) (*big.Int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.chainID != nil {
		return s.chainID, nil
	}

	id, err := s.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	s.chainID = id
	return id, nil
}

func (s *service) getDecimals(ctx context.Context) (int32, error) {
	s.mux.Lock()
	d := s.decimals
	s.mux.Unlock()

	if d > 0 {
		return d, nil
	}

	out, err := s.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}

	v, ok := out[0].(uint8)
	if !ok || v == 0 {
		return 0, fmt.Errorf("unexpected decimals %v", out[0])
	}

	s.mux.Lock()
	s.decimals = int32(v)
	s.mux.Unlock()

	return int32(v), nil
}

func (s *service) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &s.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	return tokenABI.Unpack(method, raw)
}

func (s *service) BalanceOf(ctx context.Context, wallet string) (decimal.Decimal, error) {
	if !common.IsHexAddress(wallet) {
		return decimal.Zero, core.ErrInvalidWallet
	}

	decimals, err := s.getDecimals(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	out, err := s.call(ctx, "balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return decimal.Zero, err
	}

	v, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected balance %v", out[0])
	}

	return decimal.NewFromBigInt(v, -decimals), nil
}

// toUnits scales amount to the smallest token unit, rejecting amounts finer
// than the token's decimals.
func toUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}

	units := amount.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d decimals", core.ErrInvalidAmount, decimals)
	}

	return units.BigInt(), nil
}

func (s *service) pack(ctx context.Context, call *core.TokenCall) ([]byte, error) {
	if !common.IsHexAddress(call.Wallet) {
		return nil, core.ErrInvalidWallet
	}

	wallet := common.HexToAddress(call.Wallet)

	switch call.Method {
	case core.TokenMethodMint, core.TokenMethodBurn:
		decimals, err := s.getDecimals(ctx)
		if err != nil {
			return nil, err
		}

		units, err := toUnits(call.Amount, decimals)
		if err != nil {
			return nil, err
		}

		return tokenABI.Pack(call.Method, wallet, units)
	case core.TokenMethodVerifyUser:
		return tokenABI.Pack(call.Method, wallet)
	default:
		return nil, fmt.Errorf("unsupported token method %q", call.Method)
	}
}

func (s *service) GasPrice(ctx context.Context) (*big.Int, error) {
	return s.client.SuggestGasPrice(ctx)
}

func (s *service) EstimateGas(ctx context.Context, call *core.TokenCall) (uint64, error) {
	data, err := s.pack(ctx, call)
	if err != nil {
		return 0, err
	}

	return s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     common.HexToAddress(call.From),
		To:       &s.contract,
		GasPrice: call.GasPrice,
		Data:     data,
	})
}

func (s *service) senderLock(from common.Address) *sync.Mutex {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.senders[from]
	if !ok {
		m = &sync.Mutex{}
		s.senders[from] = m
	}

	return m
}

func (s *service) Submit(ctx context.Context, call *core.TokenCall) (*core.TokenTx, error) {
	if call.GasLimit == 0 || call.GasPrice == nil {
		return nil, fmt.Errorf("gas limit and gas price are required")
	}

	from := common.HexToAddress(call.From)
	key, ok := s.keys[from]
	if !ok {
		return nil, fmt.Errorf("no signing key for %s", from.Hex())
	}

	data, err := s.pack(ctx, call)
	if err != nil {
		return nil, err
	}

	chainID, err := s.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	// nonces of one sender are handed out in order
	lock := s.senderLock(from)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.contract,
		Gas:      call.GasLimit,
		GasPrice: call.GasPrice,
		Data:     data,
	}), types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.client.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	return &core.TokenTx{
		Hash:   tx.Hash().Hex(),
		From:   core.NormalizeWallet(from.Hex()),
		Nonce:  nonce,
		SentAt: time.Now(),
	}, nil
}

func (s *service) Relay(ctx context.Context, raw []byte, call *core.TokenCall) (*core.TokenTx, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}

	chainID, err := s.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), &tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}

	if from != common.HexToAddress(call.From) {
		return nil, fmt.Errorf("tx signed by %s, want %s", from.Hex(), call.From)
	}

	if tx.To() == nil || *tx.To() != s.contract {
		return nil, fmt.Errorf("tx is not addressed to the token contract")
	}

	data, err := s.pack(ctx, call)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(tx.Data(), data) {
		return nil, fmt.Errorf("tx does not encode %s", call.Method)
	}

	if err := s.client.SendTransaction(ctx, &tx); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	return &core.TokenTx{
		Hash:   tx.Hash().Hex(),
		From:   core.NormalizeWallet(from.Hex()),
		Nonce:  tx.Nonce(),
		SentAt: time.Now(),
	}, nil
}

func (s *service) Await(ctx context.Context, tx *core.TokenTx, timeout time.Duration) (*core.TokenReceipt, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		receipt, err := s.Receipt(ctx, tx.Hash)
		if err == nil {
			return receipt, nil
		}

		// rpc failures say nothing about the transaction; keep polling
		// until the deadline
		lastErr := err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			if errors.Is(lastErr, core.ErrReceiptNotFound) {
				return nil, fmt.Errorf("tx %s: %w", tx.Hash, core.ErrChainTimeout)
			}

			return nil, fmt.Errorf("tx %s: %w: %w", tx.Hash, core.ErrChainTimeout, lastErr)
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *service) Receipt(ctx context.Context, txHash string) (*core.TokenReceipt, error) {
	hash := common.HexToHash(txHash)

	s.mux.Lock()
	v, ok := s.receipts.Get(hash)
	s.mux.Unlock()
	if ok {
		return v, nil
	}

	receipt, err := s.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, core.ErrReceiptNotFound
		}

		return nil, fmt.Errorf("fetch receipt: %w", err)
	}

	if receipt == nil || receipt.BlockNumber == nil {
		return nil, core.ErrReceiptNotFound
	}

	if s.cfg.Confirmations > 1 {
		header, err := s.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch head: %w", err)
		}

		confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
		confirmed.Add(confirmed, big.NewInt(1))
		if confirmed.Cmp(new(big.Int).SetUint64(s.cfg.Confirmations)) < 0 {
			return nil, core.ErrReceiptNotFound
		}
	}

	v = &core.TokenReceipt{
		TxHash:  hash.Hex(),
		Status:  core.ReceiptStatusConfirmed,
		Block:   receipt.BlockNumber.Uint64(),
		GasUsed: receipt.GasUsed,
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		v.Status = core.ReceiptStatusReverted
		v.Reason = "execution reverted"
	}

	s.mux.Lock()
	s.receipts.Put(hash, v)
	s.mux.Unlock()

	return v, nil
}
