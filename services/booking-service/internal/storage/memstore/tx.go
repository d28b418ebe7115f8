package memstore

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type statusChange struct {
	status model.AppointmentStatus
	reason string
	at     time.Time
}

// tx stages writes and applies them on commit. Reads see committed state plus staged writes.
type tx struct {
	s              *Store
	appts          []model.Appointment
	statuses       map[string]statusChange
	payments       []model.Payment
	paymentUpdates map[string]model.Payment
	events         []outbox.Event
	providerEvents []string
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) view(a model.Appointment) model.Appointment {
	if ch, ok := t.statuses[a.ID]; ok {
		a.Status = ch.status
		if ch.reason != "" {
			a.CancelReason = ch.reason
		}
		if ch.status == model.AppointmentCanceled {
			at := ch.at
			a.CanceledAt = &at
		}
	}
	return a
}

func (t *tx) ListOverlapping(_ context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Appointment
	for _, a := range append(append([]model.Appointment(nil), t.s.appointments...), t.appts...) {
		a = t.view(a)
		if a.StaffID == staffID && a.Occupies() && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *tx) CreateAppointment(_ context.Context, a model.Appointment) error {
	t.appts = append(t.appts, a)
	return nil
}

func (t *tx) GetAppointmentForUpdate(_ context.Context, id string) (model.Appointment, error) {
	for _, a := range t.appts {
		if a.ID == id {
			return t.view(a), nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, a := range t.s.appointments {
		if a.ID == id {
			return t.view(a), nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (t *tx) SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus, reason string, at time.Time) error {
	if _, err := t.GetAppointmentForUpdate(ctx, id); err != nil {
		return err
	}
	t.statuses[id] = statusChange{status: status, reason: reason, at: at}
	return nil
}

func (t *tx) CreatePayment(_ context.Context, p model.Payment) error {
	t.payments = append(t.payments, p)
	return nil
}

func (t *tx) GetPaymentForUpdate(_ context.Context, appointmentID string) (model.Payment, error) {
	find := func(ps []model.Payment) (model.Payment, bool) {
		for _, p := range ps {
			if p.AppointmentID == appointmentID {
				if upd, ok := t.paymentUpdates[p.ID]; ok {
					return upd, true
				}
				return p, true
			}
		}
		return model.Payment{}, false
	}
	if p, ok := find(t.payments); ok {
		return p, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if p, ok := find(t.s.payments); ok {
		return p, nil
	}
	return model.Payment{}, storage.ErrNotFound
}

func (t *tx) UpdatePayment(ctx context.Context, p model.Payment) error {
	if _, err := t.GetPaymentForUpdate(ctx, p.AppointmentID); err != nil {
		return err
	}
	t.paymentUpdates[p.ID] = p
	return nil
}

func (t *tx) RecordProviderEvent(_ context.Context, evt model.ProviderEvent) (bool, error) {
	key := evt.Provider + "|" + evt.EventID
	for _, k := range t.providerEvents {
		if k == key {
			return false, nil
		}
	}
	t.s.mu.Lock()
	seen := t.s.providerEvents[key]
	t.s.mu.Unlock()
	if seen {
		return false, nil
	}
	t.providerEvents = append(t.providerEvents, key)
	return true, nil
}

func (t *tx) EnqueueEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range t.appts {
		if !a.Occupies() {
			continue
		}
		for _, b := range s.appointments {
			b = t.view(b)
			if b.StaffID == a.StaffID && b.Occupies() && a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime) {
				return storage.ErrOverlap
			}
		}
	}
	for _, k := range t.providerEvents {
		if s.providerEvents[k] {
			return storage.ErrDuplicate
		}
	}

	for i, a := range s.appointments {
		s.appointments[i] = t.view(a)
	}
	for _, a := range t.appts {
		s.appointments = append(s.appointments, t.view(a))
	}
	s.payments = append(s.payments, t.payments...)
	for i, p := range s.payments {
		if upd, ok := t.paymentUpdates[p.ID]; ok {
			s.payments[i] = upd
		}
	}
	s.events = append(s.events, t.events...)
	for _, k := range t.providerEvents {
		s.providerEvents[k] = true
	}
	return nil
}
