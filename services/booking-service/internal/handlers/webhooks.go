package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/payment"
)

const maxWebhookBytes = 64 << 10

type Reconciler interface {
	Apply(ctx context.Context, n payment.Notification) (payment.Applied, error)
}

type WebhookConfig struct {
	StripeSecret    string
	StripeTolerance time.Duration
}

type WebhookHandler struct {
	reconciler Reconciler
	cfg        WebhookConfig
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewWebhookHandler(reconciler Reconciler, cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	if cfg.StripeTolerance <= 0 {
		cfg.StripeTolerance = 5 * time.Minute
	}
	return &WebhookHandler{reconciler: reconciler, cfg: cfg, validate: newValidator(), logger: logger}
}

type webhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cfg.StripeSecret == "" {
		http.Error(w, "stripe webhooks not configured", http.StatusServiceUnavailable)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	n, err := payment.ParseStripeEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.StripeSecret, h.cfg.StripeTolerance)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.logger.Warn("stripe webhook rejected", "err", err)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		writeError(w, r, h.logger, apperr.Validation("invalid event payload"))
		return
	}
	h.apply(w, r, n)
}

// Local accepts unsigned payment results. It must only be mounted behind admin auth.
func (h *WebhookHandler) Local(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var req payment.LocalNotification
	r.Body = io.NopCloser(bytes.NewReader(payload))
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.apply(w, r, req.Notification(payload))
}

func (h *WebhookHandler) apply(w http.ResponseWriter, r *http.Request, n payment.Notification) {
	applied, err := h.reconciler.Apply(r.Context(), n)
	if err != nil {
		// non-2xx makes the provider retry
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Duplicate: applied.Duplicate})
}
