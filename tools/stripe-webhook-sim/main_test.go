package main

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func TestBuildEventVerifies(t *testing.T) {
	now := time.Now()
	for _, typ := range []string{
		"checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired",
		"payment_intent.payment_failed",
	} {
		payload, err := buildEventJSON("evt_1", typ, now, "appt-1", "cs_1")
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_x", Timestamp: now})
		evt, err := webhook.ConstructEvent(signed.Payload, signed.Header, "whsec_x")
		if err != nil {
			t.Fatalf("%s: construct: %v", typ, err)
		}
		if string(evt.Type) != typ {
			t.Fatalf("unexpected type %s", evt.Type)
		}
	}
	if _, err := buildEventJSON("evt_1", "invoice.paid", now, "appt-1", "cs_1"); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}
