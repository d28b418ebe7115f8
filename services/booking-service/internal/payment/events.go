package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

type Outcome int

const (
	OutcomeIgnore Outcome = iota
	OutcomePaid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignore"
	}
}

// Notification is a verified provider event reduced to what the booking flow acts on.
type Notification struct {
	Provider      string
	EventID       string
	EventType     string
	AppointmentID string
	SessionID     string
	Outcome       Outcome
	// Reason is set for failed outcomes.
	Reason  string
	Payload []byte
}

var ErrInvalidSignature = errors.New("invalid webhook signature")

// ParseStripeEvent verifies the Stripe-Signature header and maps the event.
func ParseStripeEvent(payload []byte, signature, secret string, tolerance time.Duration) (Notification, error) {
	evt, err := webhook.ConstructEventWithTolerance(payload, signature, secret, tolerance)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	n := Notification{
		Provider:  ProviderStripe,
		EventID:   evt.ID,
		EventType: string(evt.Type),
		Payload:   payload,
	}
	if evt.Data == nil {
		return n, nil
	}

	switch evt.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return Notification{}, fmt.Errorf("decode checkout session: %w", err)
		}
		n.SessionID = sess.ID
		n.AppointmentID = sess.Metadata[MetadataAppointmentID]
		if n.AppointmentID == "" {
			n.AppointmentID = sess.ClientReferenceID
		}
		switch evt.Type {
		case "checkout.session.completed":
			// delayed methods complete unpaid and settle through async_payment_*
			if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
				n.Outcome = OutcomePaid
			}
		case "checkout.session.async_payment_succeeded":
			n.Outcome = OutcomePaid
		case "checkout.session.async_payment_failed":
			n.Outcome, n.Reason = OutcomeFailed, "payment_failed"
		case "checkout.session.expired":
			n.Outcome, n.Reason = OutcomeFailed, "checkout_expired"
		}
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return Notification{}, fmt.Errorf("decode payment intent: %w", err)
		}
		n.AppointmentID = pi.Metadata[MetadataAppointmentID]
		n.Outcome, n.Reason = OutcomeFailed, "payment_failed"
	}
	if n.AppointmentID == "" {
		n.Outcome = OutcomeIgnore
	}
	return n, nil
}

// LocalNotification is the body accepted by the unsigned local webhook used in
// development and by the checkout simulator.
type LocalNotification struct {
	EventID       string `json:"event_id" validate:"required,max=128"`
	AppointmentID string `json:"appointment_id" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=paid failed"`
	Reason        string `json:"reason,omitempty" validate:"max=200"`
}

func (l LocalNotification) Notification(payload []byte) Notification {
	n := Notification{
		Provider:      ProviderLocal,
		EventID:       l.EventID,
		EventType:     "local." + l.Status,
		AppointmentID: l.AppointmentID,
		Payload:       payload,
		Outcome:       OutcomePaid,
	}
	if l.Status == "failed" {
		n.Outcome = OutcomeFailed
		n.Reason = l.Reason
		if n.Reason == "" {
			n.Reason = "payment_failed"
		}
	}
	return n
}
