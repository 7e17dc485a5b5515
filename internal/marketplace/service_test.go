package marketplace

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/sei"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sellerWallet = "0x00000000000000000000000000000000000000a1"
	buyerWallet  = "0x00000000000000000000000000000000000000b1"
)

type marketStore struct {
	pgdb.Querier

	mu       sync.Mutex
	users    map[string]pgdb.User
	items    map[uuid.UUID]pgdb.ResearchItem
	listings map[uuid.UUID]pgdb.MarketplaceListing
	grants   []pgdb.AccessGrant
	txs      []pgdb.Transaction
}

func newMarketStore() *marketStore {
	return &marketStore{
		users:    map[string]pgdb.User{},
		items:    map[uuid.UUID]pgdb.ResearchItem{},
		listings: map[uuid.UUID]pgdb.MarketplaceListing{},
	}
}

func (s *marketStore) ExecTx(ctx context.Context, fn func(q pgdb.Querier) error) error {
	return fn(s)
}

func (s *marketStore) GetUserByWallet(ctx context.Context, wallet string) (pgdb.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[wallet]
	if !ok {
		return pgdb.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *marketStore) UpsertUserByWallet(ctx context.Context, wallet string) (pgdb.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[wallet]
	if !ok {
		u = pgdb.User{ID: uuid.New(), WalletAddress: wallet}
		s.users[wallet] = u
	}
	return u, nil
}

func (s *marketStore) GetResearchItem(ctx context.Context, id uuid.UUID) (pgdb.ResearchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return pgdb.ResearchItem{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *marketStore) GetActiveListingByResearch(ctx context.Context, researchID uuid.UUID) (pgdb.MarketplaceListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.ResearchID == researchID && l.IsActive {
			return l, nil
		}
	}
	return pgdb.MarketplaceListing{}, sql.ErrNoRows
}

func (s *marketStore) CreateListing(ctx context.Context, arg pgdb.CreateListingParams) (pgdb.MarketplaceListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := pgdb.MarketplaceListing{ID: uuid.New(), ResearchID: arg.ResearchID, SellerID: arg.SellerID, PriceSei: arg.PriceSei, IsActive: true}
	s.listings[l.ID] = l
	return l, nil
}

func (s *marketStore) GetListing(ctx context.Context, id uuid.UUID) (pgdb.MarketplaceListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return pgdb.MarketplaceListing{}, sql.ErrNoRows
	}
	return l, nil
}

func (s *marketStore) ListActiveListings(ctx context.Context, arg pgdb.ListActiveListingsParams) ([]pgdb.ListActiveListingsRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []pgdb.ListActiveListingsRow
	for _, l := range s.listings {
		if l.IsActive {
			rows = append(rows, pgdb.ListActiveListingsRow{ID: l.ID, ResearchID: l.ResearchID, PriceSei: l.PriceSei, ResearchTitle: s.items[l.ResearchID].Title})
		}
	}
	return rows, nil
}

func (s *marketStore) HasAccessGrant(ctx context.Context, arg pgdb.HasAccessGrantParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.ListingID == arg.ListingID && g.BuyerIdentifier == arg.BuyerIdentifier && g.IsDemo == arg.IsDemo {
			return true, nil
		}
	}
	return false, nil
}

func (s *marketStore) CreateAccessGrant(ctx context.Context, arg pgdb.CreateAccessGrantParams) (pgdb.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := pgdb.AccessGrant{ID: uuid.New(), ListingID: arg.ListingID, BuyerIdentifier: arg.BuyerIdentifier, IsDemo: arg.IsDemo, TransactionID: arg.TransactionID}
	s.grants = append(s.grants, g)
	return g, nil
}

func (s *marketStore) CreateTransaction(ctx context.Context, arg pgdb.CreateTransactionParams) (pgdb.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := pgdb.Transaction{ID: uuid.New(), UserID: arg.UserID, Type: arg.Type, Amount: arg.Amount, Status: arg.Status, TxHash: arg.TxHash}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *marketStore) GetTransactionByHash(ctx context.Context, hash string) (pgdb.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.TxHash.Valid && tx.TxHash.String == hash {
			return tx, nil
		}
	}
	return pgdb.Transaction{}, sql.ErrNoRows
}

func (s *marketStore) RecordListingSale(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.listings[id]
	l.SaleCount++
	l.ViewCount++
	s.listings[id] = l
	return nil
}

type fakeVerifier struct {
	payment *sei.Payment
	err     error
	expect  sei.Expectation
}

func (f *fakeVerifier) VerifyPayment(ctx context.Context, hash string, expect sei.Expectation) (*sei.Payment, error) {
	f.expect = expect
	return f.payment, f.err
}

type saleCounter struct{ demo, wallet int }

func (m *saleCounter) MarketplaceSale(demo bool) {
	if demo {
		m.demo++
		return
	}
	m.wallet++
}

type fixture struct {
	store    *marketStore
	verifier *fakeVerifier
	metrics  *saleCounter
	service  *Service
	seller   pgdb.User
	item     pgdb.ResearchItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMarketStore(), verifier: &fakeVerifier{}, metrics: &saleCounter{}}
	f.service = NewService(f.store, f.verifier, f.metrics, logger.New(logger.Config{Level: slog.LevelError}))
	f.seller, _ = f.store.UpsertUserByWallet(context.Background(), sellerWallet)
	f.item = pgdb.ResearchItem{
		ID:     uuid.New(),
		Title:  "L2 fee markets",
		Type:   "private",
		Status: "completed",
		UserID: uuid.NullUUID{UUID: f.seller.ID, Valid: true},
	}
	f.store.items[f.item.ID] = f.item
	return f
}

func (f *fixture) list(t *testing.T, price string) pgdb.MarketplaceListing {
	t.Helper()
	l, err := f.service.CreateListing(context.Background(), sellerWallet, f.item.ID.String(), decimal.RequireFromString(price))
	require.NoError(t, err)
	return l
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateListing(ctx, sellerWallet, f.item.ID.String(), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.service.CreateListing(ctx, buyerWallet, f.item.ID.String(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.service.CreateListing(ctx, sellerWallet, uuid.NewString(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrResearchNotFound)

	f.list(t, "2.5")

	_, err = f.service.CreateListing(ctx, sellerWallet, f.item.ID.String(), decimal.NewFromInt(3))
	assert.ErrorIs(t, err, ErrListingExists)

	rows, err := f.service.ListActive(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "L2 fee markets", rows[0].ResearchTitle)
}

func TestCreateListing_RequiresCompleted(t *testing.T) {
	f := newFixture(t)
	f.item.Status = "processing"
	f.store.items[f.item.ID] = f.item

	_, err := f.service.CreateListing(context.Background(), sellerWallet, f.item.ID.String(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrResearchNotCompleted)
}

func TestPurchase_WalletBuyer(t *testing.T) {
	f := newFixture(t)
	listing := f.list(t, "2.5")
	ctx := context.Background()

	req := PurchaseRequest{
		ListingID:    listing.ID.String(),
		Buyer:        auth.Identity{Wallet: buyerWallet, IP: "192.0.2.1"},
		SellerWallet: sellerWallet,
		Amount:       decimal.RequireFromString("2.5"),
	}
	res, err := f.service.Purchase(ctx, req)
	require.NoError(t, err)

	buyer := f.store.users[buyerWallet]
	assert.Equal(t, buyer.ID.String(), res.Grant.BuyerIdentifier)
	assert.False(t, res.Grant.IsDemo)
	assert.Equal(t, res.BuyerTx.ID, res.Grant.TransactionID.UUID)

	require.Len(t, f.store.txs, 2)
	assert.Equal(t, "marketplace_purchase", f.store.txs[0].Type)
	assert.True(t, f.store.txs[0].Amount.Equal(decimal.RequireFromString("-2.5")))
	assert.Equal(t, "sale", f.store.txs[1].Type)
	assert.Equal(t, f.seller.ID, f.store.txs[1].UserID.UUID)

	updated := f.store.listings[listing.ID]
	assert.Equal(t, int32(1), updated.SaleCount)
	assert.Equal(t, int32(1), updated.ViewCount)

	ok, err := f.service.HasAccess(ctx, listing.ID, buyer.ID.String(), false)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.service.Purchase(ctx, req)
	assert.ErrorIs(t, err, ErrAlreadyGranted)
	assert.Equal(t, 1, f.metrics.wallet)
}

func TestPurchase_DemoBuyerKeyedByIP(t *testing.T) {
	f := newFixture(t)
	listing := f.list(t, "1")

	res, err := f.service.Purchase(context.Background(), PurchaseRequest{
		ListingID:    listing.ID.String(),
		Buyer:        auth.Identity{IP: "203.0.113.9"},
		SellerWallet: sellerWallet,
		Amount:       decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", res.Grant.BuyerIdentifier)
	assert.True(t, res.Grant.IsDemo)
	assert.False(t, f.store.txs[0].UserID.Valid)

	ok, _ := f.service.HasAccess(context.Background(), listing.ID, "203.0.113.9", false)
	assert.False(t, ok, "demo grants do not match wallet lookups")
	assert.Equal(t, 1, f.metrics.demo)
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t)
	listing := f.list(t, "2")
	base := PurchaseRequest{
		ListingID:    listing.ID.String(),
		Buyer:        auth.Identity{Wallet: buyerWallet},
		SellerWallet: sellerWallet,
		Amount:       decimal.NewFromInt(2),
	}

	tests := []struct {
		name   string
		mutate func(r *PurchaseRequest)
		want   error
	}{
		{name: "unknown listing", mutate: func(r *PurchaseRequest) { r.ListingID = uuid.NewString() }, want: ErrListingNotFound},
		{name: "bad listing id", mutate: func(r *PurchaseRequest) { r.ListingID = "x" }, want: ErrListingNotFound},
		{name: "wrong amount", mutate: func(r *PurchaseRequest) { r.Amount = decimal.NewFromInt(1) }, want: ErrAmountMismatch},
		{name: "wrong seller", mutate: func(r *PurchaseRequest) { r.SellerWallet = buyerWallet }, want: ErrSellerMismatch},
		{name: "own listing", mutate: func(r *PurchaseRequest) { r.Buyer.Wallet = sellerWallet }, want: ErrOwnListing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.service.Purchase(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	inactive := f.store.listings[listing.ID]
	inactive.IsActive = false
	f.store.listings[listing.ID] = inactive
	_, err := f.service.Purchase(context.Background(), base)
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.Empty(t, f.store.grants)
}

func TestPurchase_VerifiesSuppliedHash(t *testing.T) {
	f := newFixture(t)
	listing := f.list(t, "2")
	hash := "0x2222222222222222222222222222222222222222222222222222222222222222"

	f.verifier.err = sei.ErrWrongRecipient
	req := PurchaseRequest{
		ListingID:    listing.ID.String(),
		Buyer:        auth.Identity{Wallet: buyerWallet},
		SellerWallet: sellerWallet,
		Amount:       decimal.NewFromInt(2),
		TxHash:       hash,
	}
	_, err := f.service.Purchase(context.Background(), req)
	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, sellerWallet, f.verifier.expect.To)
	assert.Equal(t, buyerWallet, f.verifier.expect.From)

	f.verifier.err = nil
	f.verifier.payment = &sei.Payment{Hash: hash, From: buyerWallet, To: sellerWallet, Value: decimal.NewFromInt(2)}
	_, err = f.service.Purchase(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, hash, f.store.txs[0].TxHash.String)
}

func TestPaySEIHandler(t *testing.T) {
	f := newFixture(t)
	listing := f.list(t, "2")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.service, logger.New(logger.Config{Level: slog.LevelError}))
	r.POST("/api/payments/sei", h.PaySEI)
	r.GET("/api/marketplace/listings", h.ListListings)

	do := func(body map[string]interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/payments/sei", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.20:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	body := map[string]interface{}{
		"listing_id":    listing.ID.String(),
		"seller_wallet": sellerWallet,
		"amount":        "2",
	}
	assert.Equal(t, http.StatusOK, do(body).Code)
	assert.Equal(t, http.StatusConflict, do(body).Code)

	body["amount"] = "3"
	assert.Equal(t, http.StatusBadRequest, do(body).Code)

	body["listing_id"] = uuid.NewString()
	assert.Equal(t, http.StatusNotFound, do(body).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/marketplace/listings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), listing.ID.String())
}
