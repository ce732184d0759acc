package services

import (
	"context"
	"strings"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/clock"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

const (
	msgEmailRequired   = "Email is required"
	msgPatientNotFound = "Patient not found"
)

// AppointmentService answers read-only appointment lookups
type AppointmentService struct {
	appointments repositories.AppointmentRepository
	users        repositories.UserRepository
	clock        clock.Clock
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	appointments repositories.AppointmentRepository,
	users repositories.UserRepository,
	clk clock.Clock,
) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		users:        users,
		clock:        clk,
	}
}

// MyUpcomingAppointment returns the patient's soonest booked appointment from now on
func (s *AppointmentService) MyUpcomingAppointment(ctx context.Context, patientID string) (*entities.UpcomingAppointment, error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.MyUpcomingAppointment")
	defer span.End()

	upcoming, err := s.appointments.NextBookedForUser(ctx, patientID, s.clock.Now())
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			observability.RecordError(span, err)
		}
		return nil, err
	}
	return upcoming, nil
}

// AppointmentsByPatientEmail lists every appointment of the user with this
// exact email. Only staff or the patient themself may look; anyone else gets
// the same NOT_FOUND as an unknown email.
func (s *AppointmentService) AppointmentsByPatientEmail(ctx context.Context, caller entities.Caller, email string) ([]*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.AppointmentsByPatientEmail")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return nil, apperrors.NewBadRequestError(msgEmailRequired)
	}

	patient, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(msgPatientNotFound)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	if !caller.IsStaff() && caller.UserID != patient.ID {
		observability.LoggerFromContext(ctx).Warn().
			Str("caller_id", caller.UserID).
			Str("caller_role", string(caller.Role)).
			Msg("email lookup denied")
		return nil, apperrors.NewNotFoundError(msgPatientNotFound)
	}

	appointments, err := s.appointments.ListByUser(ctx, patient.ID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return appointments, nil
}
