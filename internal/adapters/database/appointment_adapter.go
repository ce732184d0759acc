package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

// PostgreSQL error codes the adapters translate
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidTextRep      = "22P02"
)

const (
	msgSlotTaken        = "This appointment slot is already booked."
	msgNotFoundOrCancel = "Appointment not found or already canceled."
	msgNoUpcoming       = "No upcoming appointment found."
)

var appointmentColumns = []interface{}{
	"id", "user_id", "doctor_id", "appointment_time", "status", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewAppointmentAdapter creates a new appointment adapter. metrics may be nil.
func NewAppointmentAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

func (a *AppointmentAdapter) observe(ctx context.Context, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
}

// CreateIfSlotFree inserts the appointment in one statement. The partial
// unique index on (doctor_id, appointment_time) for booked rows turns a
// concurrent duplicate into an empty RETURNING set.
func (a *AppointmentAdapter) CreateIfSlotFree(ctx context.Context, appointment *entities.Appointment) error {
	defer a.observe(ctx, "appointments.insert", time.Now())

	query, args, err := a.db.Insert("appointments").
		Rows(goqu.Record{
			"user_id":          appointment.UserID,
			"doctor_id":        appointment.DoctorID,
			"appointment_time": appointment.AppointmentTime,
			"status":           appointment.Status,
		}).
		OnConflict(goqu.DoNothing()).
		Returning("id", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&appointment.ID,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewConflictError(msgSlotTaken)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return apperrors.NewConflictError(msgSlotTaken)
			case pqForeignKeyViolation:
				fields := apperrors.FieldErrors{}
				fields.Add("doctor_id", "The selected doctor id is invalid.")
				return apperrors.NewFieldValidationError(fields)
			}
		}
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// ListTimesForDoctor returns appointment times for a doctor in [from, to)
func (a *AppointmentAdapter) ListTimesForDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	defer a.observe(ctx, "appointments.list_times", time.Now())

	query, args, err := a.db.Select("appointment_time").
		From("appointments").
		Where(
			goqu.C("doctor_id").Eq(doctorID),
			goqu.C("appointment_time").Gte(from),
			goqu.C("appointment_time").Lt(to),
		).
		Order(goqu.C("appointment_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError("failed to list appointment times", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment time", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list appointment times", err)
	}

	return times, nil
}

// DeleteBookedByOwner hard-deletes a booked appointment owned by userID
func (a *AppointmentAdapter) DeleteBookedByOwner(ctx context.Context, id, userID string) error {
	defer a.observe(ctx, "appointments.delete", time.Now())

	query, args, err := a.db.Delete("appointments").
		Where(goqu.Ex{
			"id":      id,
			"user_id": userID,
			"status":  entities.AppointmentStatusBooked,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return apperrors.NewNotFoundError(msgNotFoundOrCancel)
		}
		return apperrors.NewInternalError("failed to delete appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(msgNotFoundOrCancel)
	}

	return nil
}

// NextBookedForUser returns the soonest booked appointment at or after from
func (a *AppointmentAdapter) NextBookedForUser(ctx context.Context, userID string, from time.Time) (*entities.UpcomingAppointment, error) {
	defer a.observe(ctx, "appointments.next_for_user", time.Now())

	query, args, err := a.db.From(goqu.T("appointments").As("a")).
		Join(goqu.T("users").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		Select(
			goqu.I("a.id"),
			goqu.I("d.name"),
			goqu.I("d.specialty"),
			goqu.I("a.appointment_time"),
			goqu.I("a.status"),
		).
		Where(
			goqu.I("a.user_id").Eq(userID),
			goqu.I("a.status").Eq(entities.AppointmentStatusBooked),
			goqu.I("a.appointment_time").Gte(from),
		).
		Order(goqu.I("a.appointment_time").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	upcoming := &entities.UpcomingAppointment{}
	var specialty sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&upcoming.ID,
		&upcoming.DoctorName,
		&specialty,
		&upcoming.AppointmentTime,
		&upcoming.Status,
	)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperrors.NewNotFoundError(msgNoUpcoming)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get upcoming appointment", err)
	}

	if specialty.Valid {
		upcoming.Specialty = &specialty.String
	}

	return upcoming, nil
}

// ListByUser retrieves all appointments of a user, any status
func (a *AppointmentAdapter) ListByUser(ctx context.Context, userID string) ([]*entities.Appointment, error) {
	defer a.observe(ctx, "appointments.list_by_user", time.Now())

	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.C("appointment_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	appointments := []*entities.Appointment{}
	for rows.Next() {
		appointment := &entities.Appointment{}
		if err := rows.Scan(
			&appointment.ID,
			&appointment.UserID,
			&appointment.DoctorID,
			&appointment.AppointmentTime,
			&appointment.Status,
			&appointment.CreatedAt,
			&appointment.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}

	return appointments, nil
}

// isInvalidText reports a malformed literal, e.g. a non-UUID id, which callers
// treat the same as "no such row"
func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRep
}
