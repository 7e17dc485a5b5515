package stripe

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/reseich/reseich-api/internal/config"
	"github.com/reseich/reseich-api/internal/credits"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type grantCall struct {
	wallet, externalID, channel string
	credits                     int64
}

type fakeGranter struct {
	calls []grantCall
	seen  map[string]bool
}

func (g *fakeGranter) GrantExternal(ctx context.Context, wallet, externalID, channel string, n int64, metadata map[string]interface{}) (*credits.PurchaseResult, error) {
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[externalID] {
		return nil, credits.ErrDuplicateTransaction
	}
	g.seen[externalID] = true
	g.calls = append(g.calls, grantCall{wallet, externalID, channel, n})
	return &credits.PurchaseResult{CreditsAdded: n, Balance: n}, nil
}

func newTestService(g Granter) *Service {
	cfg := &config.Config{StripeWebhookSecret: testWebhookSecret, Pricing: config.DefaultPricing()}
	return NewService(cfg, g, logger.New(logger.Config{Level: slog.LevelError}))
}

func signedEvent(t *testing.T, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func checkoutSession(id, status string) map[string]interface{} {
	return map[string]interface{}{
		"id":             id,
		"object":         "checkout.session",
		"payment_status": status,
		"amount_total":   1000,
		"currency":       "usd",
		"metadata": map[string]string{
			"wallet_address": "0x00000000000000000000000000000000000000aa",
			"package_id":     "researcher",
		},
	}
}

func TestHandleWebhook_GrantsPackageOnce(t *testing.T) {
	g := &fakeGranter{}
	svc := newTestService(g)

	payload, sig := signedEvent(t, "checkout.session.completed", checkoutSession("cs_test_1", "paid"))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))

	require.Len(t, g.calls, 1)
	assert.Equal(t, grantCall{
		wallet:     "0x00000000000000000000000000000000000000aa",
		externalID: "cs_test_1",
		channel:    credits.ChannelStripe,
		credits:    120,
	}, g.calls[0])
}

func TestHandleWebhook_SkipsUnpaid(t *testing.T) {
	g := &fakeGranter{}
	svc := newTestService(g)

	payload, sig := signedEvent(t, "checkout.session.completed", checkoutSession("cs_test_2", "unpaid"))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
	assert.Empty(t, g.calls)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	svc := newTestService(&fakeGranter{})

	payload, _ := signedEvent(t, "checkout.session.completed", checkoutSession("cs_test_3", "paid"))
	err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestCreateCheckoutSession_ValidatesPackage(t *testing.T) {
	svc := newTestService(&fakeGranter{})

	_, err := svc.CreateCheckoutSession(context.Background(), "0xabc", "missing", "https://reseich.app")
	assert.ErrorIs(t, err, ErrUnknownPackage)

	// Default packages carry no card price.
	_, err = svc.CreateCheckoutSession(context.Background(), "0xabc", "starter", "https://reseich.app")
	assert.ErrorIs(t, err, ErrNotForSale)
}
