package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

const appointmentColumns = `id, service_id, staff_id, customer_id, customer_name, customer_email, customer_phone,
	add_on_ids, start_time, end_time, status, canceled_at, cancel_reason, created_at`

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func scanAppointment(row pgx.CollectableRow) (model.Appointment, error) {
	var (
		a          model.Appointment
		customerID *string
		reason     *string
		status     string
	)
	err := row.Scan(&a.ID, &a.ServiceID, &a.StaffID, &customerID, &a.CustomerName, &a.CustomerEmail, &a.CustomerPhone,
		&a.AddOnIDs, &a.StartTime, &a.EndTime, &status, &a.CanceledAt, &reason, &a.CreatedAt)
	if customerID != nil {
		a.CustomerID = *customerID
	}
	if reason != nil {
		a.CancelReason = *reason
	}
	a.Status = model.AppointmentStatus(status)
	return a, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t *pgTx) ListOverlapping(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
		  AND status <> 'canceled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAppointment)
}

func (t *pgTx) CreateAppointment(ctx context.Context, a model.Appointment) error {
	addOns := a.AddOnIDs
	if addOns == nil {
		addOns = []string{}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, service_id, staff_id, customer_id, customer_name, customer_email, customer_phone,
			 add_on_ids, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.ServiceID, a.StaffID, nullable(a.CustomerID), a.CustomerName, a.CustomerEmail, a.CustomerPhone,
		addOns, a.StartTime, a.EndTime, string(a.Status), a.CreatedAt)
	return translate(err)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
	return a, translate(err)
}

func (t *pgTx) SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus, reason string, at time.Time) error {
	var canceledAt *time.Time
	if status == model.AppointmentCanceled {
		canceledAt = &at
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			cancel_reason = COALESCE($3, cancel_reason),
			canceled_at = COALESCE($4, canceled_at),
			updated_at = $5
		WHERE id = $1
	`, id, string(status), nullable(reason), canceledAt, at)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreatePayment(ctx context.Context, p model.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments
			(id, appointment_id, amount_cents, currency, status, provider, provider_session_id, checkout_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.ID, p.AppointmentID, p.AmountCents, p.Currency, string(p.Status), p.Provider,
		nullable(p.ProviderSessionID), nullable(p.CheckoutURL), p.CreatedAt)
	return translate(err)
}

func (t *pgTx) GetPaymentForUpdate(ctx context.Context, appointmentID string) (model.Payment, error) {
	var (
		p         model.Payment
		status    string
		sessionID *string
		url       *string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, appointment_id, amount_cents, currency, status, provider, provider_session_id, checkout_url, created_at, updated_at
		FROM payments
		WHERE appointment_id = $1
		FOR UPDATE
	`, appointmentID).Scan(&p.ID, &p.AppointmentID, &p.AmountCents, &p.Currency, &status, &p.Provider,
		&sessionID, &url, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Payment{}, translate(err)
	}
	p.Status = model.PaymentStatus(status)
	if sessionID != nil {
		p.ProviderSessionID = *sessionID
	}
	if url != nil {
		p.CheckoutURL = *url
	}
	return p, nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p model.Payment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET status = $2,
			provider = $3,
			provider_session_id = $4,
			checkout_url = $5,
			updated_at = $6
		WHERE id = $1
	`, p.ID, string(p.Status), p.Provider, nullable(p.ProviderSessionID), nullable(p.CheckoutURL), p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) RecordProviderEvent(ctx context.Context, evt model.ProviderEvent) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO provider_events (provider, event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, evt.Provider, evt.EventID, evt.EventType, evt.Payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
