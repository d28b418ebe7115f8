package model

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentVoided  PaymentStatus = "voided"
)

type Payment struct {
	ID                string
	AppointmentID     string
	AmountCents       int64
	Currency          string
	Status            PaymentStatus
	Provider          string
	ProviderSessionID string
	CheckoutURL       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProviderEvent is a payment provider notification kept for replay protection.
type ProviderEvent struct {
	Provider  string
	EventID   string
	EventType string
	Payload   []byte
}
