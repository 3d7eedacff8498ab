package token

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pandodao/token-bridge/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x46a60ED30B1Ff8f99bb773Bae217221c7CE19e02"

type fakeClient struct {
	mu       sync.Mutex
	balance  *big.Int
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	head     int64
	calls    int
	// receiptErrs fail that many TransactionReceipt calls before answering
	receiptErrs int
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1320), nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	method, err := tokenABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(uint8(18))
	case "balanceOf":
		return method.Outputs.Pack(f.balance)
	}

	return nil, errors.New("unexpected call " + method.Name)
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.receiptErrs > 0 {
		f.receiptErrs--
		return nil, errors.New("connection reset by peer")
	}

	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}

	return nil, ethereum.NotFound
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: big.NewInt(f.head)}, nil
}

func newService(t *testing.T, client *fakeClient, confirmations uint64) (core.TokenService, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := New(client, []*ecdsa.PrivateKey{key}, Config{
		Contract:      contract,
		Operator:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		ChainID:       1320,
		Confirmations: confirmations,
		PollInterval:  5 * time.Millisecond,
	})

	return s, key
}

func TestBalanceOf(t *testing.T) {
	client := &fakeClient{balance: new(big.Int).Mul(big.NewInt(300), big.NewInt(1e18))}
	s, _ := newService(t, client, 0)

	balance, err := s.BalanceOf(context.Background(), "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)), "balance = %s", balance)

	_, err = s.BalanceOf(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, core.ErrInvalidWallet)
}

func TestToUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    string
		wantErr bool
	}{
		{"300", "300000000000000000000", false},
		{"0.000000000000000001", "1", false},
		{"0.0000000000000000001", "", true},
		{"0", "", true},
		{"-1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := toUnits(decimal.RequireFromString(tt.amount), 18)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidAmount)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSubmitAndAwait(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{receipts: map[common.Hash]*types.Receipt{}, head: 10}
	s, _ := newService(t, client, 2)

	call := &core.TokenCall{
		Method: core.TokenMethodMint,
		Wallet: "0x1111111111111111111111111111111111111111",
		Amount: decimal.RequireFromString("300.00"),
		From:   s.Operator(),
	}

	_, err := s.Submit(ctx, call)
	require.Error(t, err, "submit without gas must fail")

	call.GasPrice, err = s.GasPrice(ctx)
	require.NoError(t, err)
	call.GasLimit, err = s.EstimateGas(ctx, call)
	require.NoError(t, err)

	tx, err := s.Submit(ctx, call)
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	sent := client.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), sent.Type())
	assert.Equal(t, big.NewInt(1_000_000_000), sent.GasPrice())
	assert.Equal(t, common.HexToAddress(contract), *sent.To())

	args, err := tokenABI.Methods["mint"].Inputs.Unpack(sent.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "300000000000000000000", args[1].(*big.Int).String())

	t.Run("times out without receipt", func(t *testing.T) {
		_, err := s.Await(ctx, tx, 20*time.Millisecond)
		assert.ErrorIs(t, err, core.ErrChainTimeout)
	})

	t.Run("waits for confirmations", func(t *testing.T) {
		client.mu.Lock()
		client.receipts[sent.Hash()] = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
		client.mu.Unlock()

		_, err := s.Receipt(ctx, tx.Hash)
		assert.ErrorIs(t, err, core.ErrReceiptNotFound)

		client.mu.Lock()
		client.head = 11
		client.mu.Unlock()

		receipt, err := s.Await(ctx, tx, time.Second)
		require.NoError(t, err)
		assert.True(t, receipt.Confirmed())
		assert.Equal(t, uint64(10), receipt.Block)
	})
}

func TestAwaitSurvivesRPCErrors(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0x02")
	tx := &core.TokenTx{Hash: hash.Hex()}

	t.Run("keeps polling after a failed receipt fetch", func(t *testing.T) {
		client := &fakeClient{receiptErrs: 2, receipts: map[common.Hash]*types.Receipt{
			hash: {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)},
		}}
		s, _ := newService(t, client, 0)

		receipt, err := s.Await(ctx, tx, time.Second)
		require.NoError(t, err)
		assert.True(t, receipt.Confirmed())
		assert.Equal(t, uint64(7), receipt.Block)
	})

	t.Run("reports a timeout when the rpc never recovers", func(t *testing.T) {
		client := &fakeClient{receiptErrs: 1 << 20}
		s, _ := newService(t, client, 0)

		_, err := s.Await(ctx, tx, 20*time.Millisecond)
		assert.ErrorIs(t, err, core.ErrChainTimeout)
	})

	t.Run("stops when the caller goes away", func(t *testing.T) {
		client := &fakeClient{receiptErrs: 1 << 20}
		s, _ := newService(t, client, 0)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Await(ctx, tx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReceiptReverted(t *testing.T) {
	client := &fakeClient{receipts: map[common.Hash]*types.Receipt{}}
	s, _ := newService(t, client, 0)

	hash := common.HexToHash("0x01")
	client.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(3)}

	receipt, err := s.Receipt(context.Background(), hash.Hex())
	require.NoError(t, err)
	assert.False(t, receipt.Confirmed())
	assert.Equal(t, core.ReceiptStatusReverted, receipt.Status)
}

func TestRelay(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	s, _ := newService(t, client, 0)

	walletKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(walletKey.PublicKey)

	sign := func(t *testing.T, to common.Address, data []byte) []byte {
		tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
			To:       &to,
			Gas:      60_000,
			GasPrice: big.NewInt(1),
			Data:     data,
		}), types.NewEIP155Signer(big.NewInt(1320)), walletKey)
		require.NoError(t, err)

		raw, err := tx.MarshalBinary()
		require.NoError(t, err)
		return raw
	}

	call := &core.TokenCall{Method: core.TokenMethodVerifyUser, Wallet: wallet.Hex(), From: wallet.Hex()}
	verify, err := tokenABI.Pack("verifyUser", wallet)
	require.NoError(t, err)

	t.Run("valid proof", func(t *testing.T) {
		tx, err := s.Relay(ctx, sign(t, common.HexToAddress(contract), verify), call)
		require.NoError(t, err)
		assert.Equal(t, core.NormalizeWallet(wallet.Hex()), tx.From)
	})

	t.Run("wrong contract", func(t *testing.T) {
		_, err := s.Relay(ctx, sign(t, common.HexToAddress("0x01"), verify), call)
		assert.Error(t, err)
	})

	t.Run("wrong payload", func(t *testing.T) {
		other, _ := tokenABI.Pack("verifyUser", common.HexToAddress("0x02"))
		_, err := s.Relay(ctx, sign(t, common.HexToAddress(contract), other), call)
		assert.Error(t, err)
	})

	t.Run("signed by another wallet", func(t *testing.T) {
		c := *call
		c.From = "0x3333333333333333333333333333333333333333"
		_, err := s.Relay(ctx, sign(t, common.HexToAddress(contract), verify), &c)
		assert.Error(t, err)
	})

	assert.Len(t, client.sent, 1)
}
