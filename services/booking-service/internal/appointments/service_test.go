package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, status model.AppointmentStatus, payStatus model.PaymentStatus) *memstore.Store {
	t.Helper()
	s := memstore.New()
	start := now.Add(2 * time.Hour)
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateAppointment(ctx, model.Appointment{
			ID: "appt-1", StaffID: "staff-1", ServiceID: "svc-1",
			StartTime: start, EndTime: start.Add(time.Hour), Status: status,
		}); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, model.Payment{ID: "pay-1", AppointmentID: "appt-1", AmountCents: 5500, Currency: "usd", Status: payStatus})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func run(t *testing.T, s *memstore.Store, fn func(ctx context.Context, tx storage.Tx) (Outcome, error)) (Outcome, error) {
	t.Helper()
	var out Outcome
	err := s.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = fn(ctx, tx)
		return err
	})
	return out, err
}

func TestConfirmPaid(t *testing.T) {
	s := seed(t, model.AppointmentPending, model.PaymentPending)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.ConfirmPaid(ctx, tx, "appt-1", "cs_test_1")
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !out.Changed || out.Released {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	appt, _ := s.Appointment("appt-1")
	pay, _ := s.PaymentFor("appt-1")
	if appt.Status != model.AppointmentConfirmed || pay.Status != model.PaymentPaid || pay.ProviderSessionID != "cs_test_1" {
		t.Fatalf("unexpected state: appt=%s pay=%+v", appt.Status, pay)
	}
	events := s.Events()
	if len(events) != 1 || events[0].EventType != outbox.EventAppointmentConfirmed {
		t.Fatalf("expected one confirmed event, got %+v", events)
	}

	// replays are no-ops
	out, err = run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.ConfirmPaid(ctx, tx, "appt-1", "cs_test_1")
	})
	if err != nil || out.Changed || len(s.Events()) != 1 {
		t.Fatalf("expected no-op replay, out=%+v err=%v", out, err)
	}
}

func TestConfirmPaidAfterCancelFlagsRefund(t *testing.T) {
	s := seed(t, model.AppointmentCanceled, model.PaymentVoided)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.ConfirmPaid(ctx, tx, "appt-1", "")
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !out.RefundDue || out.Changed {
		t.Fatalf("expected refund flag without status change, got %+v", out)
	}
	if appt, _ := s.Appointment("appt-1"); appt.Status != model.AppointmentCanceled {
		t.Fatalf("canceled appointment must stay canceled, got %s", appt.Status)
	}
}

func TestFailPaymentReleasesPending(t *testing.T) {
	s := seed(t, model.AppointmentPending, model.PaymentPending)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.FailPayment(ctx, tx, "appt-1", ReasonCheckoutExpired)
	})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if !out.Released {
		t.Fatalf("expected slot release, got %+v", out)
	}
	appt, _ := s.Appointment("appt-1")
	pay, _ := s.PaymentFor("appt-1")
	if appt.Status != model.AppointmentCanceled || appt.CancelReason != ReasonCheckoutExpired || pay.Status != model.PaymentFailed {
		t.Fatalf("unexpected state: appt=%+v pay=%+v", appt, pay)
	}
}

func TestFailPaymentIgnoresConfirmed(t *testing.T) {
	s := seed(t, model.AppointmentConfirmed, model.PaymentPaid)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.FailPayment(ctx, tx, "appt-1", ReasonPaymentFailed)
	})
	if err != nil || out.Changed {
		t.Fatalf("expected no-op, out=%+v err=%v", out, err)
	}
	if appt, _ := s.Appointment("appt-1"); appt.Status != model.AppointmentConfirmed {
		t.Fatalf("confirmed appointment must stay confirmed, got %s", appt.Status)
	}
}

func TestCancel(t *testing.T) {
	s := seed(t, model.AppointmentPending, model.PaymentPending)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.Cancel(ctx, tx, "appt-1", "customer request")
	})
	if err != nil || !out.Released || out.RefundDue {
		t.Fatalf("unexpected cancel result: out=%+v err=%v", out, err)
	}
	if pay, _ := s.PaymentFor("appt-1"); pay.Status != model.PaymentVoided {
		t.Fatalf("expected voided payment, got %s", pay.Status)
	}

	out, err = run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.Cancel(ctx, tx, "appt-1", "again")
	})
	if err != nil || out.Changed {
		t.Fatalf("second cancel should be a no-op, out=%+v err=%v", out, err)
	}
}

func TestCancelPaidFlagsRefund(t *testing.T) {
	s := seed(t, model.AppointmentConfirmed, model.PaymentPaid)
	svc := New(func() time.Time { return now })

	out, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.Cancel(ctx, tx, "appt-1", "staff sick")
	})
	if err != nil || !out.RefundDue || !out.Released {
		t.Fatalf("unexpected cancel result: out=%+v err=%v", out, err)
	}
}

func TestCancelRejectsCompletedAndUnknown(t *testing.T) {
	s := seed(t, model.AppointmentCompleted, model.PaymentPaid)
	svc := New(func() time.Time { return now })

	_, err := run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.Cancel(ctx, tx, "appt-1", "")
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = run(t, s, func(ctx context.Context, tx storage.Tx) (Outcome, error) {
		return svc.Cancel(ctx, tx, "nope", "")
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
