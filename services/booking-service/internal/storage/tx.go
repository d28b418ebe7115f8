package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Tx is the unit of work the booking and payment flows run in. Writes become
// visible to other transactions only when the enclosing callback returns nil.
type Tx interface {
	// ListOverlapping returns the staff member's non-canceled appointments intersecting [from, to).
	ListOverlapping(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, appt model.Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus, reason string, at time.Time) error

	CreatePayment(ctx context.Context, p model.Payment) error
	GetPaymentForUpdate(ctx context.Context, appointmentID string) (model.Payment, error)
	UpdatePayment(ctx context.Context, p model.Payment) error

	// RecordProviderEvent returns false when the event was already recorded.
	RecordProviderEvent(ctx context.Context, evt model.ProviderEvent) (bool, error)
	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}

// TxFunc is run inside a transaction; returning an error rolls it back.
type TxFunc func(ctx context.Context, tx Tx) error
