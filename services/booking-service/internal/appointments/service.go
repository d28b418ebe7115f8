// Package appointments holds the appointment and payment state transitions shared
// by the booking, webhook and cancellation flows.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const (
	ReasonPaymentFailed       = "payment_failed"
	ReasonCheckoutExpired     = "checkout_expired"
	ReasonCheckoutUnavailable = "checkout_unavailable"
)

type Service struct {
	now func() time.Time
}

func New(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{now: now}
}

// Outcome reports what a transition did. Released is true when the appointment's
// time became bookable again.
type Outcome struct {
	Appointment model.Appointment
	Changed     bool
	Released    bool
	// RefundDue marks money captured for an appointment that no longer exists.
	RefundDue bool
}

// ConfirmPaid records a captured payment and confirms a pending appointment.
func (s *Service) ConfirmPaid(ctx context.Context, tx storage.Tx, appointmentID, providerRef string) (Outcome, error) {
	appt, pay, err := s.load(ctx, tx, appointmentID)
	if err != nil {
		return Outcome{}, err
	}
	now := s.now()

	if pay.ID != "" && pay.Status != model.PaymentPaid {
		pay.Status = model.PaymentPaid
		if providerRef != "" {
			pay.ProviderSessionID = providerRef
		}
		pay.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return Outcome{}, fmt.Errorf("update payment: %w", err)
		}
	}

	switch appt.Status {
	case model.AppointmentPending:
	case model.AppointmentCanceled:
		return Outcome{Appointment: appt, RefundDue: true}, nil
	default:
		return Outcome{Appointment: appt}, nil
	}

	if err := tx.SetAppointmentStatus(ctx, appt.ID, model.AppointmentConfirmed, "", now); err != nil {
		return Outcome{}, fmt.Errorf("confirm appointment: %w", err)
	}
	appt.Status = model.AppointmentConfirmed
	if err := s.emit(ctx, tx, outbox.EventAppointmentConfirmed, appt, now); err != nil {
		return Outcome{}, err
	}
	return Outcome{Appointment: appt, Changed: true}, nil
}

// FailPayment marks the payment failed and releases a still-pending appointment.
// Confirmed appointments are left alone.
func (s *Service) FailPayment(ctx context.Context, tx storage.Tx, appointmentID, reason string) (Outcome, error) {
	appt, pay, err := s.load(ctx, tx, appointmentID)
	if err != nil {
		return Outcome{}, err
	}
	if appt.Status != model.AppointmentPending || pay.Status != model.PaymentPending {
		return Outcome{Appointment: appt}, nil
	}
	now := s.now()

	pay.Status = model.PaymentFailed
	pay.UpdatedAt = now
	if err := tx.UpdatePayment(ctx, pay); err != nil {
		return Outcome{}, fmt.Errorf("update payment: %w", err)
	}
	return s.release(ctx, tx, appt, reason, now)
}

// Cancel releases a pending or confirmed appointment and voids a payment not yet captured.
func (s *Service) Cancel(ctx context.Context, tx storage.Tx, appointmentID, reason string) (Outcome, error) {
	appt, pay, err := s.load(ctx, tx, appointmentID)
	if err != nil {
		return Outcome{}, err
	}
	switch appt.Status {
	case model.AppointmentCanceled:
		return Outcome{Appointment: appt}, nil
	case model.AppointmentCompleted:
		return Outcome{}, apperr.Conflict("appointment_completed", "completed appointments cannot be canceled")
	}
	now := s.now()

	if pay.Status == model.PaymentPending {
		pay.Status = model.PaymentVoided
		pay.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, pay); err != nil {
			return Outcome{}, fmt.Errorf("update payment: %w", err)
		}
	}
	out, err := s.release(ctx, tx, appt, reason, now)
	out.RefundDue = pay.Status == model.PaymentPaid
	return out, err
}

func (s *Service) release(ctx context.Context, tx storage.Tx, appt model.Appointment, reason string, now time.Time) (Outcome, error) {
	if err := tx.SetAppointmentStatus(ctx, appt.ID, model.AppointmentCanceled, reason, now); err != nil {
		return Outcome{}, fmt.Errorf("cancel appointment: %w", err)
	}
	appt.Status = model.AppointmentCanceled
	appt.CancelReason = reason
	appt.CanceledAt = &now
	if err := s.emit(ctx, tx, outbox.EventAppointmentCanceled, appt, now); err != nil {
		return Outcome{}, err
	}
	return Outcome{Appointment: appt, Changed: true, Released: true}, nil
}

func (s *Service) load(ctx context.Context, tx storage.Tx, appointmentID string) (model.Appointment, model.Payment, error) {
	appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, model.Payment{}, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return model.Appointment{}, model.Payment{}, fmt.Errorf("load appointment: %w", err)
	}
	pay, err := tx.GetPaymentForUpdate(ctx, appointmentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, model.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	return appt, pay, nil
}

func (s *Service) emit(ctx context.Context, tx storage.Tx, eventType string, appt model.Appointment, at time.Time) error {
	evt, err := outbox.AppointmentEvent(eventType, appt, at)
	if err != nil {
		return err
	}
	return tx.EnqueueEvent(ctx, evt)
}
