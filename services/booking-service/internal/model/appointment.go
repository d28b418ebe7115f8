package model

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCanceled  AppointmentStatus = "canceled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	ID            string
	ServiceID     string
	StaffID       string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddOnIDs      []string
	StartTime     time.Time
	EndTime       time.Time
	Status        AppointmentStatus
	CanceledAt    *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

// Occupies reports whether the appointment holds its staff member's time.
func (a Appointment) Occupies() bool {
	return a.Status != AppointmentCanceled
}
