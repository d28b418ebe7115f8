package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Booker interface {
	Commit(ctx context.Context, req booking.Request) (booking.Result, error)
	Cancel(ctx context.Context, appointmentID, reason string, caller *auth.Claims) (model.Appointment, error)
}

type BookingHandler struct {
	booker   Booker
	validate *validator.Validate
	logger   *slog.Logger
}

func NewBookingHandler(booker Booker, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{booker: booker, validate: newValidator(), logger: logger}
}

type createBookingRequest struct {
	ServiceID     string   `json:"service_id" validate:"required,max=64"`
	StaffID       string   `json:"staff_id" validate:"required,max=64"`
	StartTime     string   `json:"start_time" validate:"required"`
	AddOnIDs      []string `json:"add_on_ids" validate:"max=20,dive,required,max=64"`
	CustomerName  string   `json:"customer_name" validate:"max=120"`
	CustomerEmail string   `json:"customer_email" validate:"omitempty,email,max=254"`
	CustomerPhone string   `json:"customer_phone" validate:"max=32"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,max=64"`
	Reason        string `json:"reason" validate:"max=200"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CanceledAt    string `json:"canceled_at,omitempty"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeError(w, r, h.logger, apperr.Validation("start_time must be RFC3339"))
		return
	}

	customer := booking.Customer{
		Name:  strings.TrimSpace(req.CustomerName),
		Email: strings.TrimSpace(req.CustomerEmail),
		Phone: strings.TrimSpace(req.CustomerPhone),
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.Role == auth.RoleCustomer {
		customer.ID = claims.Subject
		if customer.Name == "" {
			customer.Name = claims.Name
		}
		if customer.Email == "" {
			customer.Email = claims.Email
		}
	}

	res, err := h.booker.Commit(r.Context(), booking.Request{
		ServiceID: strings.TrimSpace(req.ServiceID),
		StaffID:   strings.TrimSpace(req.StaffID),
		Start:     start,
		AddOnIDs:  req.AddOnIDs,
		Customer:  customer,
	})
	if err != nil {
		if apperr.IsSlotConflict(err) {
			h.logger.Info("booking conflict", "staff_id", req.StaffID, "start_time", req.StartTime)
		}
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{
		AppointmentID: res.Appointment.ID,
		PaymentID:     res.Payment.ID,
		Status:        string(res.Appointment.Status),
		StartTime:     res.Appointment.StartTime.UTC().Format(time.RFC3339),
		EndTime:       res.Appointment.EndTime.UTC().Format(time.RFC3339),
		TotalCents:    res.Payment.AmountCents,
		Currency:      res.Payment.Currency,
		CheckoutURL:   res.Payment.CheckoutURL,
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.booker.Cancel(r.Context(), strings.TrimSpace(req.AppointmentID), strings.TrimSpace(req.Reason), auth.ClaimsFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := cancelBookingResponse{AppointmentID: appt.ID, Status: string(appt.Status)}
	if appt.CanceledAt != nil {
		resp.CanceledAt = appt.CanceledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
