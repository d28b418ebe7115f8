package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
)

func testBackend(url string) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestStripeGatewayCreatesCheckout(t *testing.T) {
	var form map[string]string
	var idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = r.ParseForm()
		form = map[string]string{}
		for k, v := range r.PostForm {
			form[k] = v[0]
		}
		idem = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.example/cs_test_123"}`))
	}))
	defer srv.Close()

	gw, err := NewStripeGateway(StripeConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://salon.example/paid",
		CancelURL:  "https://salon.example/canceled?x=1",
		Backend:    testBackend(srv.URL),
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	gw.now = func() time.Time { return time.Unix(1_800_000_000, 0) }

	co, err := gw.CreateCheckout(context.Background(), CheckoutRequest{
		AppointmentID: "appt-1",
		PaymentID:     "pay-1",
		AmountCents:   5500,
		Currency:      "USD",
		Description:   "Haircut",
		CustomerEmail: "ana@example.com",
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if co.SessionID != "cs_test_123" || co.URL != "https://checkout.example/cs_test_123" {
		t.Fatalf("unexpected checkout: %+v", co)
	}

	want := map[string]string{
		"mode":                                          "payment",
		"client_reference_id":                           "appt-1",
		"customer_email":                                "ana@example.com",
		"line_items[0][price_data][currency]":           "usd",
		"line_items[0][price_data][unit_amount]":        "5500",
		"line_items[0][price_data][product_data][name]": "Haircut",
		"metadata[appointment_id]":                      "appt-1",
		"payment_intent_data[metadata][appointment_id]": "appt-1",
		"success_url":                                   "https://salon.example/paid?appointment_id=appt-1",
		"cancel_url":                                    "https://salon.example/canceled?x=1&appointment_id=appt-1",
		"expires_at":                                    "1800001800",
	}
	for k, v := range want {
		if form[k] != v {
			t.Fatalf("form[%q] = %q, want %q", k, form[k], v)
		}
	}
	if idem != "checkout-pay-1" {
		t.Fatalf("unexpected idempotency key %q", idem)
	}
}

func TestStripeGatewaySurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad currency"}}`))
	}))
	defer srv.Close()

	gw, err := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", SuccessURL: "https://a", CancelURL: "https://b", Backend: testBackend(srv.URL)})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	_, err = gw.CreateCheckout(context.Background(), CheckoutRequest{AppointmentID: "a", PaymentID: "p", AmountCents: 100, Currency: "xxx"})
	if err == nil || !strings.Contains(err.Error(), "bad currency") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewStripeGatewayRequiresConfig(t *testing.T) {
	if _, err := NewStripeGateway(StripeConfig{SuccessURL: "https://a", CancelURL: "https://b"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewStripeGateway(StripeConfig{SecretKey: "sk"}); err == nil {
		t.Fatalf("expected missing url error")
	}
}
