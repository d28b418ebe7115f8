// Package booking commits appointments. Every commit re-validates the requested
// slot under a per-staff lock so two customers can never hold the same time.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type Store interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	StaffPerformsService(ctx context.Context, staffID, serviceID string) (bool, error)
	ListAddOns(ctx context.Context, ids []string) ([]model.AddOn, error)
	ListSchedules(ctx context.Context, staffIDs []string) ([]model.ScheduleEntry, error)
	InTx(ctx context.Context, fn storage.TxFunc) error
	WithStaffLock(ctx context.Context, staffID string, fn storage.TxFunc) error
}

// Invalidator drops cached availability for the date of t.
type Invalidator interface {
	InvalidateDay(ctx context.Context, t time.Time)
}

type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type Request struct {
	ServiceID string
	StaffID   string
	Start     time.Time
	AddOnIDs  []string
	Customer  Customer
}

type Result struct {
	Appointment model.Appointment
	Payment     model.Payment
}

type Config struct {
	Location *time.Location
	Currency string
}

type Guard struct {
	store     Store
	gateway   payment.Gateway
	lifecycle *appointments.Service
	cache     Invalidator
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard builds the booking guard. A nil gateway confirms payments through the
// local webhook only.
func NewGuard(store Store, gateway payment.Gateway, lifecycle *appointments.Service, cache Invalidator, cfg Config, logger *slog.Logger, opts ...Option) *Guard {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		store:     store,
		gateway:   gateway,
		lifecycle: lifecycle,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer("booking-service/booking"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Commit books the requested slot as a pending appointment with a pending payment.
// It fails with a slot conflict if any non-canceled appointment of the staff member
// intersects the requested time.
func (g *Guard) Commit(ctx context.Context, req Request) (Result, error) {
	ctx, span := g.tracer.Start(ctx, "booking.commit", trace.WithAttributes(
		attribute.String("service.id", req.ServiceID),
		attribute.String("staff.id", req.StaffID),
	))
	defer span.End()

	res, err := g.commit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", res.Appointment.ID))
	return res, nil
}

func (g *Guard) commit(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	svc, addOns, err := g.catalog(ctx, req)
	if err != nil {
		return Result{}, err
	}

	start := req.Start.In(g.cfg.Location)
	end := start.Add(svc.Duration())
	if start.Before(g.now()) {
		return Result{}, apperr.Validation("start_time is in the past")
	}
	if err := g.checkWindow(ctx, req.StaffID, availability.Interval{Start: start, End: end}); err != nil {
		return Result{}, err
	}

	total := svc.PriceCents
	addOnIDs := make([]string, 0, len(addOns))
	for _, a := range addOns {
		total += a.PriceCents
		addOnIDs = append(addOnIDs, a.ID)
	}

	now := g.now().UTC()
	appt := model.Appointment{
		ID:            uuid.NewString(),
		ServiceID:     svc.ID,
		StaffID:       req.StaffID,
		CustomerID:    req.Customer.ID,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		AddOnIDs:      addOnIDs,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		Status:        model.AppointmentPending,
		CreatedAt:     now,
	}
	pay := model.Payment{
		ID:            uuid.NewString(),
		AppointmentID: appt.ID,
		AmountCents:   total,
		Currency:      g.cfg.Currency,
		Status:        model.PaymentPending,
		Provider:      payment.ProviderLocal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if g.gateway != nil {
		pay.Provider = payment.ProviderStripe
	}

	err = g.store.WithStaffLock(ctx, req.StaffID, func(ctx context.Context, tx storage.Tx) error {
		existing, err := tx.ListOverlapping(ctx, req.StaffID, appt.StartTime, appt.EndTime)
		if err != nil {
			return fmt.Errorf("list overlapping: %w", err)
		}
		if len(existing) > 0 {
			return apperr.SlotConflict()
		}
		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, pay); err != nil {
			return err
		}
		evt, err := outbox.AppointmentEvent(outbox.EventAppointmentBooked, appt, now)
		if err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, evt)
	})
	switch {
	case errors.Is(err, storage.ErrOverlap):
		g.logger.Info("booking rejected by overlap constraint", "staff_id", req.StaffID, "start", appt.StartTime)
		return Result{}, apperr.SlotConflict()
	case err != nil:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Result{}, err
		}
		return Result{}, apperr.Upstream("commit appointment", err)
	}
	g.cache.InvalidateDay(ctx, appt.StartTime)

	if g.gateway == nil {
		return Result{Appointment: appt, Payment: pay}, nil
	}
	return g.checkout(ctx, svc, appt, pay)
}

func (g *Guard) checkout(ctx context.Context, svc model.Service, appt model.Appointment, pay model.Payment) (Result, error) {
	co, err := g.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		AppointmentID: appt.ID,
		PaymentID:     pay.ID,
		AmountCents:   pay.AmountCents,
		Currency:      pay.Currency,
		Description:   svc.Name,
		CustomerEmail: appt.CustomerEmail,
	})
	if err != nil {
		g.logger.Error("checkout creation failed", "appointment_id", appt.ID, "err", err)
		cerr := g.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := g.lifecycle.FailPayment(ctx, tx, appt.ID, appointments.ReasonCheckoutUnavailable)
			return err
		})
		if cerr != nil {
			g.logger.Error("release after checkout failure", "appointment_id", appt.ID, "err", cerr)
		}
		g.cache.InvalidateDay(ctx, appt.StartTime)
		return Result{}, apperr.PaymentGateway(err)
	}

	pay.ProviderSessionID = co.SessionID
	pay.CheckoutURL = co.URL
	pay.UpdatedAt = g.now().UTC()
	err = g.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.UpdatePayment(ctx, pay)
	})
	if err != nil {
		// the provider webhook still carries the appointment id
		g.logger.Warn("store checkout session", "appointment_id", appt.ID, "session_id", co.SessionID, "err", err)
	}
	return Result{Appointment: appt, Payment: pay}, nil
}

func (g *Guard) catalog(ctx context.Context, req Request) (model.Service, []model.AddOn, error) {
	svc, err := g.store.GetService(ctx, req.ServiceID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !svc.Active) {
		return model.Service{}, nil, apperr.NotFound("service not found")
	}
	if err != nil {
		return model.Service{}, nil, apperr.Upstream("load service", err)
	}

	st, err := g.store.GetStaff(ctx, req.StaffID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Service{}, nil, apperr.NotFound("staff not found")
	}
	if err != nil {
		return model.Service{}, nil, apperr.Upstream("load staff", err)
	}
	if !st.Active {
		return model.Service{}, nil, apperr.Validation("staff member is not taking bookings")
	}
	ok, err := g.store.StaffPerformsService(ctx, req.StaffID, req.ServiceID)
	if err != nil {
		return model.Service{}, nil, apperr.Upstream("load staff services", err)
	}
	if !ok {
		return model.Service{}, nil, apperr.Validation("staff member does not perform this service")
	}

	ids := dedupe(req.AddOnIDs)
	if len(ids) == 0 {
		return svc, nil, nil
	}
	addOns, err := g.store.ListAddOns(ctx, ids)
	if err != nil {
		return model.Service{}, nil, apperr.Upstream("load add-ons", err)
	}
	if len(addOns) != len(ids) {
		return model.Service{}, nil, apperr.NotFound("add-on not found")
	}
	return svc, addOns, nil
}

func (g *Guard) checkWindow(ctx context.Context, staffID string, slot availability.Interval) error {
	entries, err := g.store.ListSchedules(ctx, []string{staffID})
	if err != nil {
		return apperr.Upstream("load schedules", err)
	}
	win, ok := availability.EffectiveWindow(availability.StartOfDay(slot.Start, g.cfg.Location), entries)
	if !ok || !win.Contains(slot) {
		return apperr.Validation("requested time is outside the staff member's working hours")
	}
	return nil
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.ServiceID) == "":
		return apperr.Validation("service_id is required")
	case strings.TrimSpace(req.StaffID) == "":
		return apperr.Validation("staff_id is required")
	case req.Start.IsZero():
		return apperr.Validation("start_time is required")
	}
	c := req.Customer
	if c.ID == "" && (strings.TrimSpace(c.Name) == "" || (c.Email == "" && c.Phone == "")) {
		return apperr.Validation("customer name and a contact are required for guest bookings")
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
