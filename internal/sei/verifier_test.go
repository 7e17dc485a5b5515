package sei

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = 1329

var treasury = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeEthClient struct {
	mu            sync.Mutex
	receipt       *types.Receipt
	receiptErr    error
	missingPolls  int
	receiptCalls  int
	tx            *types.Transaction
	balance       *big.Int
	balanceErr    error
	gasPrice      *big.Int
	gasLimit      uint64
	estimateInput ethereum.CallMsg
}

func (f *fakeEthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receiptCalls <= f.missingPolls || f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeEthClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if f.tx == nil {
		return nil, false, ethereum.NotFound
	}
	return f.tx, false, nil
}

func (f *fakeEthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeEthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimateInput = msg
	return f.gasLimit, nil
}

func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, to common.Address, wei *big.Int) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    wei,
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(testChainID)), key)
	require.NoError(t, err)
	return signed
}

func seiToWei(t *testing.T, amount string) *big.Int {
	t.Helper()
	return SEIToWei(decimal.RequireFromString(amount))
}

func newTestVerifier(client EthClient) *Verifier {
	return NewVerifier(client, VerifierConfig{
		ChainID:      testChainID,
		ReceiptWait:  200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
}

func TestVerifyPayment_Success(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	buyer := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	tx := signedTransfer(t, key, treasury, seiToWei(t, "1.5"))
	client := &fakeEthClient{
		tx:           tx,
		missingPolls: 2,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(4242),
			GasUsed:     21000,
		},
	}

	payment, err := newTestVerifier(client).VerifyPayment(context.Background(), tx.Hash().Hex(), Expectation{
		From:     buyer,
		To:       treasury.Hex(),
		MinValue: decimal.RequireFromString("1.5"),
	})

	require.NoError(t, err)
	assert.Equal(t, buyer, payment.From)
	assert.Equal(t, strings.ToLower(treasury.Hex()), payment.To)
	assert.True(t, payment.Value.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, uint64(4242), payment.BlockNumber)
	assert.Equal(t, 3, client.receiptCalls)
}

func TestVerifyPayment_Mismatches(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	buyer := crypto.PubkeyToAddress(key.PublicKey).Hex()
	tx := signedTransfer(t, key, treasury, seiToWei(t, "1"))
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}

	tests := []struct {
		name   string
		expect Expectation
		want   error
	}{
		{name: "other sender", expect: Expectation{From: "0x0000000000000000000000000000000000000001"}, want: ErrWrongSender},
		{name: "other recipient", expect: Expectation{From: buyer, To: "0x0000000000000000000000000000000000000002"}, want: ErrWrongRecipient},
		{name: "value too low", expect: Expectation{From: buyer, MinValue: decimal.RequireFromString("2")}, want: ErrValueTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeEthClient{tx: tx, receipt: receipt}
			_, err := newTestVerifier(client).VerifyPayment(context.Background(), tx.Hash().Hex(), tt.expect)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyPayment_FailedReceipt(t *testing.T) {
	client := &fakeEthClient{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	hash := common.HexToHash("0x01").Hex()

	_, err := newTestVerifier(client).VerifyPayment(context.Background(), hash, Expectation{})
	assert.ErrorIs(t, err, ErrTxFailed)
}

func TestVerifyPayment_InvalidHash(t *testing.T) {
	_, err := newTestVerifier(&fakeEthClient{}).VerifyPayment(context.Background(), "0x1234", Expectation{})
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestWaitForReceipt_TimesOut(t *testing.T) {
	client := &fakeEthClient{}
	start := time.Now()

	_, err := newTestVerifier(client).WaitForReceipt(context.Background(), common.HexToHash("0x02"))

	assert.ErrorIs(t, err, ErrTxNotFound)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Greater(t, client.receiptCalls, 1)
}

func TestWaitForReceipt_RPCError(t *testing.T) {
	client := &fakeEthClient{receiptErr: errors.New("503 service unavailable")}

	_, err := newTestVerifier(client).WaitForReceipt(context.Background(), common.HexToHash("0x03"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTxNotFound)
	assert.Equal(t, 1, client.receiptCalls)
}

func TestWaitForReceipt_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestVerifier(&fakeEthClient{}).WaitForReceipt(ctx, common.HexToHash("0x04"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBalanceAndEstimate(t *testing.T) {
	client := &fakeEthClient{
		balance:  seiToWei(t, "12.25"),
		gasPrice: big.NewInt(2_000_000_000),
		gasLimit: 21000,
	}
	v := newTestVerifier(client)

	balance, err := v.Balance(context.Background(), treasury.Hex())
	require.NoError(t, err)
	assert.Equal(t, "12.25", balance.String())

	quote, err := v.EstimateTransfer(context.Background(), treasury.Hex(), "0x00000000000000000000000000000000000000bb", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), quote.GasLimit)
	assert.Equal(t, "0.000042", quote.FeeSEI.String())
	assert.Equal(t, seiToWei(t, "0.5"), client.estimateInput.Value)
}
