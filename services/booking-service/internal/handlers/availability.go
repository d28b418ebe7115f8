package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

type AvailabilityHandler struct {
	engine *availability.Engine
	logger *slog.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger}
}

// Slots serves GET /api/v1/availability?date=&service_id=[&staff_id=].
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	dateStr := strings.TrimSpace(q.Get("date"))
	if dateStr == "" {
		writeError(w, r, h.logger, apperr.Validation("date is required"))
		return
	}
	day, err := h.engine.ParseDate(dateStr)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.engine.Availability(r.Context(), availability.Query{
		Date:      day,
		ServiceID: q.Get("service_id"),
		StaffID:   q.Get("staff_id"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res == nil {
		res = []availability.StaffSlots{}
	}
	writeJSON(w, http.StatusOK, res)
}

// Dates serves GET /api/v1/availability/dates?service_id=.
func (h *AvailabilityHandler) Dates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dates, err := h.engine.AvailableDates(r.Context(), r.URL.Query().Get("service_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}
