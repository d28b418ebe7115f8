package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

var (
	monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	now    = monday.Add(-16 * time.Hour)
)

type env struct {
	store      *memstore.Store
	engine     *availability.Engine
	guard      *booking.Guard
	reconciler *payment.Reconciler
	logger     *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := memstore.New()
	s.PutService(model.Service{ID: "svc-cut", Name: "Haircut", DurationMinutes: 30, PriceCents: 4000, Active: true})
	s.PutStaff(model.Staff{ID: "staff-ana", Name: "Ana", Active: true}, "svc-cut")
	s.PutAddOn(model.AddOn{ID: "addon-wash", Name: "Wash", PriceCents: 1500})
	mon := time.Monday
	s.PutSchedule(model.ScheduleEntry{ID: "w1", StaffID: "staff-ana", DayOfWeek: &mon, StartMinute: 9 * 60, EndMinute: 12 * 60, IsAvailable: true})

	engine := availability.NewEngine(s, availability.NewMemoryCache(clock), availability.Config{Location: time.UTC}, logger, availability.WithClock(clock))
	lifecycle := appointments.New(clock)
	return &env{
		store:      s,
		engine:     engine,
		guard:      booking.NewGuard(s, nil, lifecycle, engine, booking.Config{Location: time.UTC, Currency: "usd"}, logger, booking.WithClock(clock)),
		reconciler: payment.NewReconciler(s, lifecycle, engine, logger),
		logger:     logger,
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}
