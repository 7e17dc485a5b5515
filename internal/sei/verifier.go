package sei

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// weiDecimals is the number of decimals of the native SEI token on the EVM side.
const weiDecimals = 18

var (
	ErrInvalidHash    = errors.New("invalid transaction hash")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrTxFailed       = errors.New("transaction failed on chain")
	ErrWrongSender    = errors.New("transaction sender does not match")
	ErrWrongRecipient = errors.New("transaction recipient does not match")
	ErrValueTooLow    = errors.New("transaction value is lower than expected")
)

// Payment is a verified native SEI transfer.
type Payment struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	BlockNumber uint64          `json:"block_number"`
	GasUsed     uint64          `json:"gas_used"`
}

// Expectation describes what a payment must look like. Empty fields are not checked.
type Expectation struct {
	From     string
	To       string
	MinValue decimal.Decimal
}

type VerifierConfig struct {
	ChainID      int64
	ReceiptWait  time.Duration
	PollInterval time.Duration
}

// Verifier checks SEI transactions against the chain.
type Verifier struct {
	client       EthClient
	signer       types.Signer
	receiptWait  time.Duration
	pollInterval time.Duration
}

func NewVerifier(client EthClient, cfg VerifierConfig) *Verifier {
	if cfg.ReceiptWait <= 0 {
		cfg.ReceiptWait = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Verifier{
		client:       client,
		signer:       types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		receiptWait:  cfg.ReceiptWait,
		pollInterval: cfg.PollInterval,
	}
}

// ParseTxHash validates a 0x-prefixed 32 byte hash.
func ParseTxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 66 {
		return common.Hash{}, ErrInvalidHash
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, ErrInvalidHash
	}
	return common.BytesToHash(b), nil
}

// WaitForReceipt polls for the receipt until it exists, the wait budget is spent
// (ErrTxNotFound) or ctx is cancelled. RPC errors other than not-found are returned as is.
func (v *Verifier) WaitForReceipt(parent context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(parent, v.receiptWait)
	defer cancel()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := v.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			return nil, ErrTxNotFound
		case <-ticker.C:
		}
	}
}

// VerifyPayment waits for the transaction's receipt and checks it succeeded and
// matches expect.
func (v *Verifier) VerifyPayment(ctx context.Context, txHash string, expect Expectation) (*Payment, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	receipt, err := v.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}

	tx, _, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	from, err := types.Sender(v.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}

	payment := &Payment{
		Hash:    hash.Hex(),
		From:    strings.ToLower(from.Hex()),
		Value:   WeiToSEI(tx.Value()),
		GasUsed: receipt.GasUsed,
	}
	if tx.To() != nil {
		payment.To = strings.ToLower(tx.To().Hex())
	}
	if receipt.BlockNumber != nil {
		payment.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if expect.From != "" && !strings.EqualFold(expect.From, payment.From) {
		return nil, ErrWrongSender
	}
	if expect.To != "" && !strings.EqualFold(expect.To, payment.To) {
		return nil, ErrWrongRecipient
	}
	if payment.Value.LessThan(expect.MinValue) {
		return nil, ErrValueTooLow
	}

	return payment, nil
}

// Balance returns the native SEI balance of address.
func (v *Verifier) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address %q", address)
	}
	wei, err := v.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return WeiToSEI(wei), nil
}

// GasQuote is the estimated cost of a native transfer.
type GasQuote struct {
	GasLimit    uint64          `json:"gas_limit"`
	GasPriceWei string          `json:"gas_price_wei"`
	FeeSEI      decimal.Decimal `json:"fee_sei"`
}

// EstimateTransfer estimates gas for sending value SEI from one address to another.
func (v *Verifier) EstimateTransfer(ctx context.Context, from, to string, value decimal.Decimal) (*GasQuote, error) {
	if !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		return nil, errors.New("invalid address")
	}

	gasPrice, err := v.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	toAddr := common.HexToAddress(to)
	gas, err := v.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Value: SEIToWei(value),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	return &GasQuote{
		GasLimit:    gas,
		GasPriceWei: gasPrice.String(),
		FeeSEI:      WeiToSEI(fee),
	}, nil
}

// WeiToSEI converts an amount in wei to SEI.
func WeiToSEI(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// SEIToWei converts SEI to wei, truncating below one wei.
func SEIToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(weiDecimals).BigInt()
}
