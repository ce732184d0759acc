package repositories

import (
	"context"
	"time"

	"github.com/clinicbook/backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// CreateIfSlotFree inserts appointment unless a live booking already holds
	// the same doctor and exact time. The store assigns ID and timestamps.
	// Returns a CONFLICT AppError when the slot is taken.
	CreateIfSlotFree(ctx context.Context, appointment *entities.Appointment) error

	// ListTimesForDoctor returns the appointment_time of every appointment
	// for doctorID in [from, to), whatever its status.
	ListTimesForDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error)

	// DeleteBookedByOwner removes a booked appointment owned by userID.
	// Returns a NOT_FOUND AppError when nothing matched.
	DeleteBookedByOwner(ctx context.Context, id, userID string) error

	// NextBookedForUser returns the soonest booked appointment of userID at or
	// after from, joined with its doctor. Returns a NOT_FOUND AppError if none.
	NextBookedForUser(ctx context.Context, userID string, from time.Time) (*entities.UpcomingAppointment, error)

	// ListByUser retrieves every appointment of a user
	ListByUser(ctx context.Context, userID string) ([]*entities.Appointment, error)
}
