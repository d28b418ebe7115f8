package availability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// ScheduleSource is the read side of the store. Lookups of unknown ids return storage.ErrNotFound.
type ScheduleSource interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	// ListStaffForService returns active staff qualified for the service.
	ListStaffForService(ctx context.Context, serviceID string) ([]model.Staff, error)
	ListSchedules(ctx context.Context, staffIDs []string) ([]model.ScheduleEntry, error)
	ListActiveAppointments(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Appointment, error)
}

// computeTimeout bounds a shared computation once no single caller owns it.
const computeTimeout = 10 * time.Second

type Config struct {
	Location    *time.Location
	Cadence     time.Duration
	CacheTTL    time.Duration
	HorizonDays int
}

type Query struct {
	Date      time.Time
	ServiceID string
	// StaffID narrows the answer to one staff member when set.
	StaffID string
}

type StaffSlots struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
	Slots     []Slot `json:"slots"`
}

// Engine answers availability questions from the store, memoizing answers in a Cache.
// Its answers are advisory; booking re-checks against current appointments.
type Engine struct {
	source ScheduleSource
	cache  Cache
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
	group  singleflight.Group
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(source ScheduleSource, cache Cache, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 30
	}
	if cache == nil {
		cache = NewMemoryCache(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		source: source,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("salonbook/availability"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }

// ParseDate reads a YYYY-MM-DD date as midnight in the salon's location.
func (e *Engine) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), e.cfg.Location)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
	}
	return d, nil
}

// Availability lists, per qualified staff member working that day, the free slots for the service.
func (e *Engine) Availability(ctx context.Context, q Query) ([]StaffSlots, error) {
	q.ServiceID = strings.TrimSpace(q.ServiceID)
	q.StaffID = strings.TrimSpace(q.StaffID)
	if q.ServiceID == "" {
		return nil, apperr.Validation("service_id is required")
	}
	if q.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	day := StartOfDay(q.Date, e.cfg.Location)
	key := SlotsKey(day, q.ServiceID, q.StaffID)

	ctx, span := e.tracer.Start(ctx, "availability.slots", trace.WithAttributes(
		attribute.String("service.id", q.ServiceID),
		attribute.String("staff.id", q.StaffID),
		attribute.String("date", day.Format(DateLayout)),
	))
	defer span.End()

	var cached []StaffSlots
	if e.lookup(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return withoutStarted(cached, e.now()), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err := e.shared(ctx, key, func(ctx context.Context) (any, error) {
		res, err := e.computeSlots(ctx, day, q)
		if err != nil {
			return nil, err
		}
		e.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return withoutStarted(v.([]StaffSlots), e.now()), nil
}

// AvailableDates lists the dates within the horizon, starting today, on which at
// least one qualified staff member has working hours. Appointments are not consulted.
func (e *Engine) AvailableDates(ctx context.Context, serviceID string) ([]string, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, apperr.Validation("service_id is required")
	}
	today := StartOfDay(e.now(), e.cfg.Location)
	key := DatesKey(serviceID, today)

	ctx, span := e.tracer.Start(ctx, "availability.dates", trace.WithAttributes(
		attribute.String("service.id", serviceID),
	))
	defer span.End()

	var cached []string
	if e.lookup(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	v, err := e.shared(ctx, key, func(ctx context.Context) (any, error) {
		res, err := e.computeDates(ctx, today, serviceID)
		if err != nil {
			return nil, err
		}
		e.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v.([]string), nil
}

// shared runs fn once for all concurrent callers of key. The work does not inherit
// any caller's cancellation; each caller stops waiting when its own ctx is done.
func (e *Engine) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := e.group.DoChan(key, func() (any, error) {
		work, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return fn(work)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// InvalidateDay drops every cached slot answer for the calendar date of t.
func (e *Engine) InvalidateDay(ctx context.Context, t time.Time) {
	day := StartOfDay(t, e.cfg.Location)
	if err := e.cache.DeletePrefix(ctx, DayPrefix(day)); err != nil {
		e.logger.Warn("availability cache invalidation failed", "date", day.Format(DateLayout), "err", err)
	}
}

func (e *Engine) computeSlots(ctx context.Context, day time.Time, q Query) ([]StaffSlots, error) {
	svc, err := e.service(ctx, q.ServiceID)
	if err != nil {
		return nil, err
	}
	staff, err := e.qualifiedStaff(ctx, q.ServiceID, q.StaffID)
	if err != nil {
		return nil, err
	}
	out := []StaffSlots{}
	if len(staff) == 0 {
		return out, nil
	}

	entries, err := e.source.ListSchedules(ctx, staffIDs(staff))
	if err != nil {
		return nil, apperr.Upstream("load schedules", err)
	}
	byStaff := GroupByStaff(entries)

	type open struct {
		staff model.Staff
		win   Interval
	}
	var working []open
	var bounds Interval
	for _, st := range staff {
		win, ok := EffectiveWindow(day, byStaff[st.ID])
		if !ok {
			continue
		}
		working = append(working, open{staff: st, win: win})
		if bounds.Start.IsZero() || win.Start.Before(bounds.Start) {
			bounds.Start = win.Start
		}
		if win.End.After(bounds.End) {
			bounds.End = win.End
		}
	}
	if len(working) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(working))
	for _, w := range working {
		ids = append(ids, w.staff.ID)
	}
	appts, err := e.source.ListActiveAppointments(ctx, ids, bounds.Start, bounds.End)
	if err != nil {
		return nil, apperr.Upstream("load appointments", err)
	}
	apptsByStaff := map[string][]model.Appointment{}
	for _, a := range appts {
		apptsByStaff[a.StaffID] = append(apptsByStaff[a.StaffID], a)
	}

	for _, w := range working {
		out = append(out, StaffSlots{
			StaffID:   w.staff.ID,
			StaffName: w.staff.Name,
			Slots:     FilterConflicts(Candidates(w.win, svc.Duration(), e.cfg.Cadence), Busy(apptsByStaff[w.staff.ID])),
		})
	}
	slices.SortStableFunc(out, func(a, b StaffSlots) int {
		if c := strings.Compare(a.StaffName, b.StaffName); c != 0 {
			return c
		}
		return strings.Compare(a.StaffID, b.StaffID)
	})
	return out, nil
}

func (e *Engine) computeDates(ctx context.Context, today time.Time, serviceID string) ([]string, error) {
	if _, err := e.service(ctx, serviceID); err != nil {
		return nil, err
	}
	staff, err := e.source.ListStaffForService(ctx, serviceID)
	if err != nil {
		return nil, apperr.Upstream("load staff", err)
	}
	dates := []string{}
	if len(staff) == 0 {
		return dates, nil
	}
	entries, err := e.source.ListSchedules(ctx, staffIDs(staff))
	if err != nil {
		return nil, apperr.Upstream("load schedules", err)
	}
	byStaff := GroupByStaff(entries)

	for i := 0; i < e.cfg.HorizonDays; i++ {
		day := today.AddDate(0, 0, i)
		for _, st := range staff {
			if _, ok := EffectiveWindow(day, byStaff[st.ID]); ok {
				dates = append(dates, day.Format(DateLayout))
				break
			}
		}
	}
	return dates, nil
}

func (e *Engine) service(ctx context.Context, id string) (model.Service, error) {
	svc, err := e.source.GetService(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !svc.Active) {
		return model.Service{}, apperr.NotFound("service not found")
	}
	if err != nil {
		return model.Service{}, apperr.Upstream("load service", err)
	}
	return svc, nil
}

// qualifiedStaff returns the staff that can perform the service, narrowed to staffID when set.
// A staffID that exists but is not qualified yields no staff; an unknown one is NotFound.
func (e *Engine) qualifiedStaff(ctx context.Context, serviceID, staffID string) ([]model.Staff, error) {
	all, err := e.source.ListStaffForService(ctx, serviceID)
	if err != nil {
		return nil, apperr.Upstream("load staff", err)
	}
	if staffID == "" {
		return all, nil
	}
	for _, st := range all {
		if st.ID == staffID {
			return []model.Staff{st}, nil
		}
	}
	if _, err := e.source.GetStaff(ctx, staffID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("staff not found")
		}
		return nil, apperr.Upstream("load staff", err)
	}
	return nil, nil
}

func (e *Engine) lookup(ctx context.Context, key string, dst any) bool {
	b, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("availability cache read failed", "key", key, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		e.logger.Warn("availability cache entry unreadable", "key", key, "err", err)
		return false
	}
	return true
}

func (e *Engine) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn("availability cache encode failed", "key", key, "err", err)
		return
	}
	if err := e.cache.Set(ctx, key, b, e.cfg.CacheTTL); err != nil {
		e.logger.Warn("availability cache write failed", "key", key, "err", err)
	}
}

// withoutStarted drops slots that began before now. res may be shared with other
// callers, so it is copied rather than filtered in place.
func withoutStarted(res []StaffSlots, now time.Time) []StaffSlots {
	out := make([]StaffSlots, 0, len(res))
	for _, s := range res {
		slots := []Slot{}
		for sl := range NotBefore(slices.Values(s.Slots), now) {
			slots = append(slots, sl)
		}
		s.Slots = slots
		out = append(out, s)
	}
	return out
}

func staffIDs(staff []model.Staff) []string {
	ids := make([]string, 0, len(staff))
	for _, st := range staff {
		ids = append(ids, st.ID)
	}
	return ids
}
