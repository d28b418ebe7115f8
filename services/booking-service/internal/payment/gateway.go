// Package payment talks to the card processor: hosted checkout creation and
// verification of the notifications it sends back.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

const (
	ProviderStripe = "stripe"
	ProviderLocal  = "local"

	MetadataAppointmentID = "appointment_id"
	MetadataPaymentID     = "payment_id"
)

// stripe refuses checkout sessions that expire sooner than this.
const minSessionTTL = 30 * time.Minute

type CheckoutRequest struct {
	AppointmentID string
	PaymentID     string
	AmountCents   int64
	Currency      string
	Description   string
	CustomerEmail string
}

type Checkout struct {
	SessionID string
	URL       string
}

// Gateway creates hosted checkout pages for a booking deposit.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	SessionTTL time.Duration
	// Backend overrides the API backend; nil uses the live Stripe API.
	Backend stripe.Backend
}

type StripeGateway struct {
	sessions checkoutsession.Client
	cfg      StripeConfig
	now      func() time.Time
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("stripe success and cancel urls are required")
	}
	if cfg.SessionTTL < minSessionTTL {
		cfg.SessionTTL = minSessionTTL
	}
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		sessions: checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if req.AmountCents <= 0 {
		return Checkout{}, fmt.Errorf("invalid checkout amount %d", req.AmountCents)
	}
	metadata := map[string]string{
		MetadataAppointmentID: req.AppointmentID,
		MetadataPaymentID:     req.PaymentID,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withAppointment(g.cfg.SuccessURL, req.AppointmentID)),
		CancelURL:         stripe.String(withAppointment(g.cfg.CancelURL, req.AppointmentID)),
		ClientReferenceID: stripe.String(req.AppointmentID),
		ExpiresAt:         stripe.Int64(g.now().Add(g.cfg.SessionTTL).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
		Metadata: metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("checkout-" + req.PaymentID)

	sess, err := g.sessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func withAppointment(base, appointmentID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "appointment_id=" + appointmentID
}
