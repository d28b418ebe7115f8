// Package memstore is an in-process implementation of the booking store used by
// tests. It enforces the same no-overlap rule as the appointments_no_overlap
// constraint at commit time.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type Store struct {
	mu             sync.Mutex
	services       map[string]model.Service
	staff          map[string]model.Staff
	qualified      map[string]map[string]bool
	addOns         map[string]model.AddOn
	schedules      []model.ScheduleEntry
	appointments   []model.Appointment
	payments       []model.Payment
	events         []outbox.Event
	providerEvents map[string]bool

	staffLocks  map[string]*sync.Mutex
	txMu        sync.Mutex
	lockStaff   bool
	beforeWrite func()
}

type Option func(*Store)

// WithoutStaffLocks lets transactions for one staff member run concurrently,
// leaving the commit-time overlap check as the only guard.
func WithoutStaffLocks() Option {
	return func(s *Store) { s.lockStaff = false }
}

// WithCommitHook runs fn after a transaction callback succeeds and before its writes are applied.
func WithCommitHook(fn func()) Option {
	return func(s *Store) { s.beforeWrite = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		services:       map[string]model.Service{},
		staff:          map[string]model.Staff{},
		qualified:      map[string]map[string]bool{},
		addOns:         map[string]model.AddOn{},
		providerEvents: map[string]bool{},
		staffLocks:     map[string]*sync.Mutex{},
		lockStaff:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

// PutStaff stores a staff member qualified for serviceIDs.
func (s *Store) PutStaff(st model.Staff, serviceIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = st
	for _, id := range serviceIDs {
		if s.qualified[id] == nil {
			s.qualified[id] = map[string]bool{}
		}
		s.qualified[id][st.ID] = true
	}
}

func (s *Store) PutAddOn(a model.AddOn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOns[a.ID] = a
}

func (s *Store) PutSchedule(e model.ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, e)
}

func (s *Store) PutAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = append(s.appointments, a)
}

func (s *Store) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.appointments)
}

func (s *Store) Appointment(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ID == id {
			return a, true
		}
	}
	return model.Appointment{}, false
}

func (s *Store) PaymentFor(appointmentID string) (model.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.AppointmentID == appointmentID {
			return p, true
		}
	}
	return model.Payment{}, false
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *Store) GetService(_ context.Context, id string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (s *Store) GetStaff(_ context.Context, id string) (model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[id]
	if !ok {
		return model.Staff{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Store) ListStaffForService(_ context.Context, serviceID string) ([]model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Staff
	for id := range s.qualified[serviceID] {
		if st, ok := s.staff[id]; ok && st.Active {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b model.Staff) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) StaffPerformsService(_ context.Context, staffID, serviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qualified[serviceID][staffID], nil
}

func (s *Store) ListAddOns(_ context.Context, ids []string) ([]model.AddOn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AddOn
	for _, id := range ids {
		if a, ok := s.addOns[id]; ok {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.AddOn) int { return strings.Compare(a.ID, b.ID) })
	return slices.CompactFunc(out, func(a, b model.AddOn) bool { return a.ID == b.ID }), nil
}

func (s *Store) ListSchedules(_ context.Context, staffIDs []string) ([]model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScheduleEntry
	for _, e := range s.schedules {
		if slices.Contains(staffIDs, e.StaffID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListActiveAppointments(_ context.Context, staffIDs []string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if slices.Contains(staffIDs, a.StaffID) && a.Occupies() && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn storage.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.run(ctx, fn)
}

func (s *Store) WithStaffLock(ctx context.Context, staffID string, fn storage.TxFunc) error {
	if s.lockStaff {
		s.mu.Lock()
		l, ok := s.staffLocks[staffID]
		if !ok {
			l = &sync.Mutex{}
			s.staffLocks[staffID] = l
		}
		s.mu.Unlock()
		l.Lock()
		defer l.Unlock()
	}
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn storage.TxFunc) error {
	t := &tx{s: s, statuses: map[string]statusChange{}, paymentUpdates: map[string]model.Payment{}}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	return t.commit()
}
