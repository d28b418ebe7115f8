package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type TxRunner interface {
	InTx(ctx context.Context, fn storage.TxFunc) error
}

type Invalidator interface {
	InvalidateDay(ctx context.Context, t time.Time)
}

// Applied describes what a notification changed.
type Applied struct {
	Duplicate bool
	Ignored   bool
	Result    appointments.Outcome
}

// Reconciler applies verified provider notifications to appointments exactly once.
type Reconciler struct {
	store     TxRunner
	lifecycle *appointments.Service
	cache     Invalidator
	logger    *slog.Logger
}

func NewReconciler(store TxRunner, lifecycle *appointments.Service, cache Invalidator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, lifecycle: lifecycle, cache: cache, logger: logger}
}

func (r *Reconciler) Apply(ctx context.Context, n Notification) (Applied, error) {
	if n.Outcome == OutcomeIgnore {
		return Applied{Ignored: true}, nil
	}

	var applied Applied
	err := r.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		fresh, err := tx.RecordProviderEvent(ctx, model.ProviderEvent{
			Provider:  n.Provider,
			EventID:   n.EventID,
			EventType: n.EventType,
			Payload:   n.Payload,
		})
		if err != nil {
			return err
		}
		if !fresh {
			applied.Duplicate = true
			return nil
		}
		switch n.Outcome {
		case OutcomePaid:
			applied.Result, err = r.lifecycle.ConfirmPaid(ctx, tx, n.AppointmentID, n.SessionID)
		case OutcomeFailed:
			applied.Result, err = r.lifecycle.FailPayment(ctx, tx, n.AppointmentID, n.Reason)
		}
		return err
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return Applied{Duplicate: true}, nil
	case apperr.IsKind(err, apperr.KindNotFound):
		r.logger.Warn("payment event for unknown appointment", "provider", n.Provider, "event_id", n.EventID, "appointment_id", n.AppointmentID)
		return Applied{Ignored: true}, nil
	case err != nil:
		return Applied{}, err
	}

	if applied.Duplicate {
		r.logger.Info("payment event replayed", "provider", n.Provider, "event_id", n.EventID)
		return applied, nil
	}
	if applied.Result.Released {
		r.cache.InvalidateDay(ctx, applied.Result.Appointment.StartTime)
	}
	if applied.Result.RefundDue {
		r.logger.Warn("payment captured for canceled appointment; refund required",
			"appointment_id", n.AppointmentID, "session_id", n.SessionID)
	}
	r.logger.Info("payment event applied", "provider", n.Provider, "event_id", n.EventID,
		"outcome", n.Outcome.String(), "appointment_id", n.AppointmentID, "changed", applied.Result.Changed)
	return applied, nil
}
