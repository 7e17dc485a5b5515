package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reseich/reseich-api/internal/config"
	"github.com/reseich/reseich-api/internal/credits"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrUnknownPackage = errors.New("unknown credit package")
	ErrNotForSale     = errors.New("credit package has no card price")
)

// Granter credits a wallet for a payment settled outside the chain.
type Granter interface {
	GrantExternal(ctx context.Context, wallet, externalID, channel string, credits int64, metadata map[string]interface{}) (*credits.PurchaseResult, error)
}

// Service sells credit packages by card through Stripe Checkout.
// Credits are granted from the checkout.session.completed webhook, keyed by the
// Checkout Session ID so a redelivered event never grants twice.
type Service struct {
	granter       Granter
	pricing       config.Pricing
	webhookSecret string
	logger        *logger.Logger
}

// NewService creates a new Stripe service instance and configures the Stripe SDK.
// It sets the global Stripe API key from the application configuration.
func NewService(cfg *config.Config, granter Granter, logger *logger.Logger) *Service {
	log := logger.WithComponent("stripe_service")

	apiKey := cfg.StripeSecretKey
	if apiKey == "" {
		log.Warn("Stripe secret key is empty - API calls will fail")
	} else if len(apiKey) < 20 {
		log.Warn("Stripe secret key appears invalid (too short)", "length", len(apiKey))
	} else {
		log.Info("Stripe API key configured", "key_prefix", apiKey[:7], "key_length", len(apiKey))
	}

	stripe.Key = apiKey
	return &Service{
		granter:       granter,
		pricing:       cfg.Pricing,
		webhookSecret: cfg.StripeWebhookSecret,
		logger:        log,
	}
}

// CreateCheckoutSession generates a one-off Stripe Checkout Session URL for a
// credit package. The buyer wallet and package id travel in the session
// metadata and are read back by the webhook.
//
// Example:
//
//	url, err := service.CreateCheckoutSession(ctx, "0xabc...", "researcher", "https://reseich.app")
//	if err != nil {
//	    return err
//	}
//	// Redirect the browser to url
func (s *Service) CreateCheckoutSession(ctx context.Context, wallet, packageID, origin string) (string, error) {
	pkg, ok := s.pricing.Package(packageID)
	if !ok {
		return "", ErrUnknownPackage
	}
	if pkg.StripePriceID == "" {
		return "", ErrNotForSale
	}

	successURL := origin + "/credits?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := origin + "/credits?canceled=true"

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pkg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(wallet),
		Metadata: map[string]string{
			"wallet_address": wallet,
			"package_id":     pkg.ID,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		"wallet", wallet,
		"package_id", pkg.ID,
		"session_id", sess.ID,
		"origin", origin)

	return sess.URL, nil
}

// HandleWebhook verifies the Stripe-Signature header and processes the event.
//
// Supported webhook events:
//   - checkout.session.completed: grants the package's credits once the session is paid
//
// Security:
// The webhook endpoint MUST NOT require authentication, as Stripe cannot provide tokens.
// Security is ensured through cryptographic signature verification using the webhook secret.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("webhook event received", "type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return s.fulfil(ctx, &sess)
	default:
		s.logger.Info("unhandled webhook event type", "type", event.Type)
	}

	return nil
}

// fulfil grants credits for a paid checkout session. Unpaid sessions (delayed
// payment methods) are skipped.
func (s *Service) fulfil(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Info("checkout session not paid yet", "session_id", sess.ID, "payment_status", sess.PaymentStatus)
		return nil
	}

	wallet := sess.Metadata["wallet_address"]
	if wallet == "" {
		return fmt.Errorf("missing wallet_address in session metadata")
	}
	pkg, ok := s.pricing.Package(sess.Metadata["package_id"])
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPackage, sess.Metadata["package_id"])
	}

	res, err := s.granter.GrantExternal(ctx, wallet, sess.ID, credits.ChannelStripe, pkg.Credits, map[string]interface{}{
		"package_id":   pkg.ID,
		"amount_total": sess.AmountTotal,
		"currency":     sess.Currency,
	})
	if errors.Is(err, credits.ErrDuplicateTransaction) {
		s.logger.Info("checkout session already fulfilled", "session_id", sess.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	s.logger.Info("credits granted",
		"wallet", wallet,
		"package_id", pkg.ID,
		"credits", pkg.Credits,
		"balance", res.Balance,
		"session_id", sess.ID)

	return nil
}
