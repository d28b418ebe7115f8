package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Repository is the Postgres-backed store for the catalog, schedules, appointments and payments.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price_cents, active
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active)
	return s, translate(err)
}

func (r *Repository) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM staff
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Active)
	return s, translate(err)
}

// ListStaffForService returns active staff qualified for the service.
func (r *Repository) ListStaffForService(ctx context.Context, serviceID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.active
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE ss.service_id = $1 AND s.active
		ORDER BY s.name, s.id
	`, serviceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Staff, error) {
		var s model.Staff
		err := row.Scan(&s.ID, &s.Name, &s.Active)
		return s, err
	})
}

func (r *Repository) StaffPerformsService(ctx context.Context, staffID, serviceID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff_services WHERE staff_id = $1 AND service_id = $2
		)
	`, staffID, serviceID).Scan(&ok)
	return ok, err
}

func (r *Repository) ListAddOns(ctx context.Context, ids []string) ([]model.AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price_cents
		FROM add_ons
		WHERE id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AddOn, error) {
		var a model.AddOn
		err := row.Scan(&a.ID, &a.Name, &a.PriceCents)
		return a, err
	})
}

// ListSchedules returns weekly and override entries oldest first, so later rows win ties.
func (r *Repository) ListSchedules(ctx context.Context, staffIDs []string) ([]model.ScheduleEntry, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, day_of_week, date, start_minute, end_minute, is_available, updated_at
		FROM staff_schedules
		WHERE staff_id = ANY($1)
		ORDER BY updated_at, id
	`, staffIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ScheduleEntry, error) {
		var (
			e   model.ScheduleEntry
			dow *int32
		)
		if err := row.Scan(&e.ID, &e.StaffID, &dow, &e.Date, &e.StartMinute, &e.EndMinute, &e.IsAvailable, &e.UpdatedAt); err != nil {
			return e, err
		}
		if dow != nil {
			wd := time.Weekday(*dow)
			e.DayOfWeek = &wd
		}
		return e, nil
	})
}

// ListActiveAppointments returns non-canceled appointments of the staff members intersecting [from, to).
func (r *Repository) ListActiveAppointments(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Appointment, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = ANY($1)
		  AND status <> 'canceled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, staffIDs, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAppointment)
}

// InTx runs fn in a read-committed transaction.
func (r *Repository) InTx(ctx context.Context, fn TxFunc) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, outbox: r.outbox})
	})
}

// WithStaffLock runs fn in a transaction holding an advisory lock on the staff member,
// so check-then-insert sequences for one staff member never interleave.
func (r *Repository) WithStaffLock(ctx context.Context, staffID string, fn TxFunc) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "staff:"+staffID); err != nil {
			return err
		}
		return fn(ctx, &pgTx{tx: tx, outbox: r.outbox})
	})
}
