package sei

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/reseich/reseich-api/internal/logger"
)

// EthClient is the subset of the SEI EVM JSON-RPC used by the service.
type EthClient interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

var _ EthClient = (*ethclient.Client)(nil)

// Dial connects to the first reachable endpoint, in order.
func Dial(ctx context.Context, endpoints []string, log *logger.Logger) (*ethclient.Client, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one SEI RPC endpoint is required")
	}

	var lastErr error
	for i, endpoint := range endpoints {
		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			lastErr = err
			log.Warn("SEI RPC endpoint unavailable", slog.Int("index", i), slog.String("error", err.Error()))
			continue
		}
		if _, err := client.ChainID(ctx); err != nil {
			client.Close()
			lastErr = err
			log.Warn("SEI RPC endpoint failed chain id probe", slog.Int("index", i), slog.String("error", err.Error()))
			continue
		}
		log.Info("connected to SEI RPC", slog.Int("index", i), slog.Int("endpoints", len(endpoints)))
		return client, nil
	}

	return nil, fmt.Errorf("failed to connect to any SEI RPC endpoint: %w", lastErr)
}
