// Command stripe-webhook-sim posts a signed Stripe checkout event for an
// appointment to a running booking service.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/md-rashed-zaman/salonbook/libs/config"
)

func main() {
	var (
		baseURL       = flag.String("base-url", config.String("BASE_URL", "http://localhost:8083"), "booking service base url")
		evtType       = flag.String("type", config.String("STRIPE_EVENT_TYPE", "checkout.session.completed"), "stripe event type")
		appointmentID = flag.String("appointment-id", config.String("APPOINTMENT_ID", ""), "appointment_id metadata")
		sessionID     = flag.String("session-id", config.String("SESSION_ID", "cs_test_sim"), "checkout session id")
		secret        = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*appointmentID) == "" {
		fatal("APPOINTMENT_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())

	payload, err := buildEventJSON(eventID, *evtType, now, *appointmentID, *sessionID)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/payments/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("event=%s status=%d body=%s\n", eventID, resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, appointmentID, sessionID string) ([]byte, error) {
	var object map[string]any
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		object = checkoutSession(sessionID, appointmentID, "paid", "complete")
	case "checkout.session.async_payment_failed":
		object = checkoutSession(sessionID, appointmentID, "unpaid", "complete")
	case "checkout.session.expired":
		object = checkoutSession(sessionID, appointmentID, "unpaid", "expired")
	case "payment_intent.payment_failed":
		object = map[string]any{
			"id":       "pi_test_sim",
			"object":   "payment_intent",
			"status":   "requires_payment_method",
			"metadata": map[string]any{"appointment_id": appointmentID},
		}
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
}

func checkoutSession(id, appointmentID, paymentStatus, status string) map[string]any {
	return map[string]any{
		"id":                  id,
		"object":              "checkout.session",
		"payment_status":      paymentStatus,
		"status":              status,
		"client_reference_id": appointmentID,
		"metadata":            map[string]any{"appointment_id": appointmentID},
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
