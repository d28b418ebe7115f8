package booking

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/appointments"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// Cancel releases an appointment on behalf of caller. Admins may cancel anything,
// staff their own appointments and customers the ones they booked.
func (g *Guard) Cancel(ctx context.Context, appointmentID, reason string, caller *auth.Claims) (model.Appointment, error) {
	if caller == nil {
		return model.Appointment{}, apperr.Forbidden("sign in to cancel appointments")
	}
	if reason == "" {
		reason = "canceled by " + caller.Role
	}
	var out appointments.Outcome
	err := g.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("appointment not found")
			}
			return err
		}
		if !mayCancel(caller, appt) {
			return apperr.Forbidden("not allowed to cancel this appointment")
		}
		out, err = g.lifecycle.Cancel(ctx, tx, appointmentID, reason)
		return err
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return model.Appointment{}, err
		}
		return model.Appointment{}, apperr.Upstream("cancel appointment", err)
	}
	if out.Released {
		g.cache.InvalidateDay(ctx, out.Appointment.StartTime)
	}
	if out.RefundDue {
		g.logger.Warn("canceled appointment was already paid; refund required", "appointment_id", appointmentID)
	}
	return out.Appointment, nil
}

func mayCancel(c *auth.Claims, appt model.Appointment) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleStaff:
		return c.Subject == appt.StaffID
	default:
		return appt.CustomerID != "" && c.Subject == appt.CustomerID
	}
}
