package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

type countingCache struct{ n int }

func (c *countingCache) InvalidateDay(context.Context, time.Time) { c.n++ }

func pendingBooking(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateAppointment(ctx, model.Appointment{ID: "appt-1", StaffID: "staff-1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.AppointmentPending}); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, model.Payment{ID: "pay-1", AppointmentID: "appt-1", AmountCents: 4000, Status: model.PaymentPending})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func newReconciler(s *memstore.Store, cache *countingCache) *Reconciler {
	return NewReconciler(s, appointments.New(nil), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReconcilerPaidOnce(t *testing.T) {
	s := pendingBooking(t)
	cache := &countingCache{}
	r := newReconciler(s, cache)
	n := Notification{Provider: ProviderStripe, EventID: "evt_1", EventType: "checkout.session.completed", AppointmentID: "appt-1", SessionID: "cs_1", Outcome: OutcomePaid}

	applied, err := r.Apply(context.Background(), n)
	if err != nil || !applied.Result.Changed {
		t.Fatalf("apply: %+v %v", applied, err)
	}
	if appt, _ := s.Appointment("appt-1"); appt.Status != model.AppointmentConfirmed {
		t.Fatalf("expected confirmed, got %s", appt.Status)
	}

	applied, err = r.Apply(context.Background(), n)
	if err != nil || !applied.Duplicate {
		t.Fatalf("expected duplicate, got %+v %v", applied, err)
	}
	if len(s.Events()) != 1 || cache.n != 0 {
		t.Fatalf("replay must not emit events or invalidate, events=%d invalidations=%d", len(s.Events()), cache.n)
	}
}

func TestReconcilerFailureReleasesSlot(t *testing.T) {
	s := pendingBooking(t)
	cache := &countingCache{}
	r := newReconciler(s, cache)

	applied, err := r.Apply(context.Background(), Notification{Provider: ProviderStripe, EventID: "evt_2", AppointmentID: "appt-1", Outcome: OutcomeFailed, Reason: "checkout_expired"})
	if err != nil || !applied.Result.Released {
		t.Fatalf("apply: %+v %v", applied, err)
	}
	if cache.n != 1 {
		t.Fatalf("expected one invalidation, got %d", cache.n)
	}
	if pay, _ := s.PaymentFor("appt-1"); pay.Status != model.PaymentFailed {
		t.Fatalf("expected failed payment, got %s", pay.Status)
	}
}

func TestReconcilerIgnoresUnknownAppointment(t *testing.T) {
	s := pendingBooking(t)
	r := newReconciler(s, &countingCache{})

	applied, err := r.Apply(context.Background(), Notification{Provider: ProviderLocal, EventID: "e1", AppointmentID: "nope", Outcome: OutcomePaid})
	if err != nil || !applied.Ignored {
		t.Fatalf("expected ignored, got %+v %v", applied, err)
	}
	applied, err = r.Apply(context.Background(), Notification{Provider: ProviderStripe, EventID: "e2", Outcome: OutcomeIgnore})
	if err != nil || !applied.Ignored {
		t.Fatalf("expected ignored, got %+v %v", applied, err)
	}
}
