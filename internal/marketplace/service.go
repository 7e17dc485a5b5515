package marketplace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/sei"
	"github.com/reseich/reseich-api/internal/storage/pg"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/shopspring/decimal"
)

var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrResearchNotFound     = errors.New("research item not found")
	ErrNotOwner             = errors.New("research item is not owned by this wallet")
	ErrResearchNotCompleted = errors.New("only completed research can be listed")
	ErrListingExists        = errors.New("research item already has an active listing")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrAmountMismatch       = errors.New("amount does not match listing price")
	ErrSellerMismatch       = errors.New("seller wallet does not own this listing")
	ErrOwnListing           = errors.New("cannot buy your own listing")
	ErrAlreadyGranted       = errors.New("buyer already has access to this listing")
	ErrDuplicateTransaction = errors.New("transaction already used")
)

// PaymentError wraps an on-chain verification failure the client can fix.
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
	MarketplaceSale(demo bool)
}

type Service struct {
	store    pg.Store
	verifier PaymentVerifier
	metrics  Metrics
	logger   *logger.Logger
}

func NewService(store pg.Store, verifier PaymentVerifier, metrics Metrics, logger *logger.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger.WithComponent("marketplace"),
	}
}

// CreateListing offers a completed research item owned by wallet for sale.
func (s *Service) CreateListing(ctx context.Context, wallet, researchID string, price decimal.Decimal) (pgdb.MarketplaceListing, error) {
	if !price.IsPositive() {
		return pgdb.MarketplaceListing{}, ErrInvalidPrice
	}

	rid, err := uuid.Parse(researchID)
	if err != nil {
		return pgdb.MarketplaceListing{}, ErrResearchNotFound
	}
	item, err := s.store.GetResearchItem(ctx, rid)
	if errors.Is(err, sql.ErrNoRows) {
		return pgdb.MarketplaceListing{}, ErrResearchNotFound
	}
	if err != nil {
		return pgdb.MarketplaceListing{}, fmt.Errorf("failed to load research item: %w", err)
	}

	seller, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return pgdb.MarketplaceListing{}, ErrNotOwner
	}
	if err != nil {
		return pgdb.MarketplaceListing{}, fmt.Errorf("failed to load seller: %w", err)
	}
	if !item.UserID.Valid || item.UserID.UUID != seller.ID {
		return pgdb.MarketplaceListing{}, ErrNotOwner
	}
	if item.Status != "completed" {
		return pgdb.MarketplaceListing{}, ErrResearchNotCompleted
	}

	if _, err := s.store.GetActiveListingByResearch(ctx, rid); err == nil {
		return pgdb.MarketplaceListing{}, ErrListingExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return pgdb.MarketplaceListing{}, fmt.Errorf("failed to check existing listing: %w", err)
	}

	listing, err := s.store.CreateListing(ctx, pgdb.CreateListingParams{
		ResearchID: rid,
		SellerID:   seller.ID,
		PriceSei:   price,
	})
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return pgdb.MarketplaceListing{}, ErrListingExists
		}
		return pgdb.MarketplaceListing{}, fmt.Errorf("failed to create listing: %w", err)
	}

	s.logger.WithContext(ctx).Info("listing created",
		slog.String("listing_id", listing.ID.String()),
		slog.String("research_id", researchID),
		slog.String("price_sei", price.String()))

	return listing, nil
}

func (s *Service) ListActive(ctx context.Context, limit, offset int32) ([]pgdb.ListActiveListingsRow, error) {
	rows, err := s.store.ListActiveListings(ctx, pgdb.ListActiveListingsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	if rows == nil {
		rows = []pgdb.ListActiveListingsRow{}
	}
	return rows, nil
}

// HasAccess reports whether identifier holds a grant for the listing. Wallet
// buyers are identified by user id, demo buyers by IP.
func (s *Service) HasAccess(ctx context.Context, listingID uuid.UUID, identifier string, isDemo bool) (bool, error) {
	ok, err := s.store.HasAccessGrant(ctx, pgdb.HasAccessGrantParams{
		ListingID:       listingID,
		BuyerIdentifier: identifier,
		IsDemo:          isDemo,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check access grant: %w", err)
	}
	return ok, nil
}

type PurchaseRequest struct {
	ListingID    string
	Buyer        auth.Identity
	SellerWallet string
	Amount       decimal.Decimal
	TxHash       string
}

type PurchaseResult struct {
	Grant      pgdb.AccessGrant
	BuyerTx    pgdb.Transaction
	SellerTx   pgdb.Transaction
	ResearchID uuid.UUID
}

// Purchase records a sale of a listing to the buyer and grants access.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	lid, err := uuid.Parse(req.ListingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	listing, err := s.store.GetListing(ctx, lid)
	if errors.Is(err, sql.ErrNoRows) || err == nil && !listing.IsActive {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	if !req.Amount.Equal(listing.PriceSei) {
		return nil, ErrAmountMismatch
	}

	seller, err := s.store.GetUserByWallet(ctx, req.SellerWallet)
	if errors.Is(err, sql.ErrNoRows) || err == nil && seller.ID != listing.SellerID {
		return nil, ErrSellerMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load seller: %w", err)
	}

	demo := req.Buyer.IsDemo()
	var buyer pgdb.User
	if !demo {
		if req.Buyer.Wallet == seller.WalletAddress {
			return nil, ErrOwnListing
		}
		buyer, err = s.store.UpsertUserByWallet(ctx, req.Buyer.Wallet)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert buyer: %w", err)
		}
	}
	identifier := req.Buyer.IP
	if !demo {
		identifier = buyer.ID.String()
	}

	granted, err := s.HasAccess(ctx, lid, identifier, demo)
	if err != nil {
		return nil, err
	}
	if granted {
		return nil, ErrAlreadyGranted
	}

	var (
		txHash  sql.NullString
		payment *sei.Payment
	)
	if req.TxHash != "" {
		payment, err = s.verifyPayment(ctx, req, seller.WalletAddress)
		if err != nil {
			return nil, err
		}
		txHash = sql.NullString{String: payment.Hash, Valid: true}
	}

	meta := map[string]interface{}{
		"listing_id":       lid.String(),
		"research_id":      listing.ResearchID.String(),
		"buyer_identifier": identifier,
		"is_demo":          demo,
	}
	if payment != nil {
		meta["block_number"] = payment.BlockNumber
		meta["from"] = payment.From
	}
	metadata, _ := json.Marshal(meta)

	res := &PurchaseResult{ResearchID: listing.ResearchID}
	err = s.store.ExecTx(ctx, func(q pgdb.Querier) error {
		buyerTx := pgdb.CreateTransactionParams{
			Type:     "marketplace_purchase",
			Amount:   req.Amount.Neg(),
			Status:   "completed",
			TxHash:   txHash,
			Metadata: metadata,
		}
		if !demo {
			buyerTx.UserID = uuid.NullUUID{UUID: buyer.ID, Valid: true}
		}
		var err error
		if res.BuyerTx, err = q.CreateTransaction(ctx, buyerTx); err != nil {
			return mapUnique(err, ErrDuplicateTransaction, "failed to record purchase")
		}

		res.SellerTx, err = q.CreateTransaction(ctx, pgdb.CreateTransactionParams{
			UserID:   uuid.NullUUID{UUID: seller.ID, Valid: true},
			Type:     "sale",
			Amount:   req.Amount,
			Status:   "completed",
			TxHash:   txHash,
			Metadata: metadata,
		})
		if err != nil {
			return mapUnique(err, ErrDuplicateTransaction, "failed to record sale")
		}

		res.Grant, err = q.CreateAccessGrant(ctx, pgdb.CreateAccessGrantParams{
			ListingID:       lid,
			BuyerIdentifier: identifier,
			IsDemo:          demo,
			TransactionID:   uuid.NullUUID{UUID: res.BuyerTx.ID, Valid: true},
		})
		if err != nil {
			return mapUnique(err, ErrAlreadyGranted, "failed to grant access")
		}

		if err := q.RecordListingSale(ctx, lid); err != nil {
			return fmt.Errorf("failed to record listing sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MarketplaceSale(demo)
	s.logger.WithContext(ctx).Info("listing purchased",
		slog.String("listing_id", lid.String()),
		slog.Bool("is_demo", demo),
		slog.String("amount_sei", req.Amount.String()))

	return res, nil
}

func (s *Service) verifyPayment(ctx context.Context, req PurchaseRequest, sellerWallet string) (*sei.Payment, error) {
	if s.verifier == nil {
		return nil, errors.New("payment verification is not configured")
	}
	hash, err := sei.ParseTxHash(req.TxHash)
	if err != nil {
		return nil, &PaymentError{Err: err}
	}
	if _, err := s.store.GetTransactionByHash(ctx, hash.Hex()); err == nil {
		return nil, ErrDuplicateTransaction
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check transaction hash: %w", err)
	}

	payment, err := s.verifier.VerifyPayment(ctx, hash.Hex(), sei.Expectation{
		From:     req.Buyer.Wallet,
		To:       sellerWallet,
		MinValue: req.Amount,
	})
	if err != nil {
		for _, target := range []error{sei.ErrTxNotFound, sei.ErrTxFailed, sei.ErrWrongSender, sei.ErrWrongRecipient, sei.ErrValueTooLow} {
			if errors.Is(err, target) {
				return nil, &PaymentError{Err: err}
			}
		}
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	return payment, nil
}

func mapUnique(err, sentinel error, msg string) error {
	if pg.IsUniqueViolation(err) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", msg, err)
}
