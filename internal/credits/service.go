package credits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/config"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/sei"
	"github.com/reseich/reseich-api/internal/storage/pg"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/shopspring/decimal"
)

const (
	ChannelSEI    = "sei"
	ChannelStripe = "stripe"

	txTypePurchase = "purchase"
)

var (
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrCreditsMismatch      = errors.New("credits amount does not match the paid value")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// PaymentError wraps a verification failure the client can fix (wrong hash,
// failed or mismatched transfer).
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return "payment verification failed: " + e.Err.Error() }
func (e *PaymentError) Unwrap() error { return e.Err }

// PaymentVerifier checks a native SEI transfer on chain.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash string, expect sei.Expectation) (*sei.Payment, error)
}

type Metrics interface {
	CreditsGranted(channel string, credits int64)
}

type Service struct {
	store    pg.Store
	verifier PaymentVerifier
	pricing  config.Pricing
	treasury string
	metrics  Metrics
	logger   *logger.Logger
}

func NewService(store pg.Store, verifier PaymentVerifier, pricing config.Pricing, treasury string, metrics Metrics, logger *logger.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		pricing:  pricing,
		treasury: treasury,
		metrics:  metrics,
		logger:   logger.WithComponent("credits"),
	}
}

type PurchaseRequest struct {
	TxHash        string
	Wallet        string
	SEIAmount     decimal.Decimal
	CreditsAmount int64
}

type PurchaseResult struct {
	CreditsAdded int64
	Balance      int64
	Transaction  pgdb.Transaction
}

// CreditsFor converts a SEI value to credits at the configured rate, rounding down.
func (s *Service) CreditsFor(value decimal.Decimal) int64 {
	return value.Mul(decimal.NewFromInt(s.pricing.CreditsPerSEI)).Floor().IntPart()
}

// Purchase verifies a SEI transfer to the treasury and grants the matching credits.
// A transaction hash can only ever be redeemed once.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if !req.SEIAmount.IsPositive() || req.CreditsAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	hash, err := sei.ParseTxHash(req.TxHash)
	if err != nil {
		return nil, &PaymentError{Err: err}
	}
	txHash := hash.Hex()

	if _, err := s.store.GetTransactionByHash(ctx, txHash); err == nil {
		return nil, ErrDuplicateTransaction
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check transaction hash: %w", err)
	}

	payment, err := s.verifier.VerifyPayment(ctx, txHash, sei.Expectation{
		From:     req.Wallet,
		To:       s.treasury,
		MinValue: req.SEIAmount,
	})
	if err != nil {
		if isClientPaymentError(err) {
			return nil, &PaymentError{Err: err}
		}
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	credits := s.CreditsFor(payment.Value)
	if credits != req.CreditsAmount {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrCreditsMismatch, credits, req.CreditsAmount)
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"block_number": payment.BlockNumber,
		"gas_used":     payment.GasUsed,
		"from":         payment.From,
		"to":           payment.To,
		"channel":      ChannelSEI,
	})

	res, err := s.grant(ctx, req.Wallet, credits, pgdb.CreateTransactionParams{
		Type:          txTypePurchase,
		Amount:        payment.Value,
		CreditsAmount: credits,
		Status:        "completed",
		TxHash:        sql.NullString{String: txHash, Valid: true},
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CreditsGranted(ChannelSEI, credits)
	s.logger.WithContext(ctx).Info("credits purchased",
		slog.String("tx_hash", txHash),
		slog.Int64("credits", credits),
		slog.String("sei", payment.Value.String()))

	return res, nil
}

// GrantExternal credits a wallet for a payment settled off chain, such as a card
// checkout. externalID makes the grant idempotent.
func (s *Service) GrantExternal(ctx context.Context, wallet, externalID, channel string, credits int64, metadata map[string]interface{}) (*PurchaseResult, error) {
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.store.GetTransactionByExternalID(ctx, externalID); err == nil {
		return nil, ErrDuplicateTransaction
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check external id: %w", err)
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["channel"] = channel
	raw, _ := json.Marshal(metadata)

	res, err := s.grant(ctx, wallet, credits, pgdb.CreateTransactionParams{
		Type:          txTypePurchase,
		Amount:        decimal.Zero,
		CreditsAmount: credits,
		Status:        "completed",
		ExternalID:    sql.NullString{String: externalID, Valid: true},
		Metadata:      raw,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CreditsGranted(channel, credits)
	return res, nil
}

// grant adds credits and records the purchase row in one unit of work.
func (s *Service) grant(ctx context.Context, wallet string, credits int64, tx pgdb.CreateTransactionParams) (*PurchaseResult, error) {
	var res PurchaseResult

	err := s.store.ExecTx(ctx, func(q pgdb.Querier) error {
		user, err := q.UpsertUserByWallet(ctx, wallet)
		if err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		res.Balance, err = q.AddUserCredits(ctx, pgdb.AddUserCreditsParams{ID: user.ID, Credits: credits})
		if err != nil {
			return fmt.Errorf("failed to add credits: %w", err)
		}

		tx.UserID = uuid.NullUUID{UUID: user.ID, Valid: true}
		res.Transaction, err = q.CreateTransaction(ctx, tx)
		if err != nil {
			if pg.IsUniqueViolation(err) {
				return ErrDuplicateTransaction
			}
			return fmt.Errorf("failed to record purchase: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.CreditsAdded = credits
	return &res, nil
}

// Balance returns the wallet's credits. Unknown wallets have zero.
func (s *Service) Balance(ctx context.Context, wallet string) (int64, error) {
	user, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load user: %w", err)
	}
	return user.Credits, nil
}

// History returns the wallet's most recent transactions.
func (s *Service) History(ctx context.Context, wallet string, limit int32) ([]pgdb.Transaction, error) {
	user, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return []pgdb.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	txs, err := s.store.ListTransactionsByUser(ctx, pgdb.ListTransactionsByUserParams{
		UserID: uuid.NullUUID{UUID: user.ID, Valid: true},
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) Packages() []config.CreditPackage {
	return s.pricing.CreditPackages
}

func (s *Service) Package(id string) (config.CreditPackage, bool) {
	return s.pricing.Package(id)
}

func isClientPaymentError(err error) bool {
	for _, target := range []error{
		sei.ErrInvalidHash,
		sei.ErrTxNotFound,
		sei.ErrTxFailed,
		sei.ErrWrongSender,
		sei.ErrWrongRecipient,
		sei.ErrValueTooLow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
