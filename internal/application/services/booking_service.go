package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/clock"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

// Booking outcomes recorded on the booking counter
const (
	bookingOutcomeBooked   = "booked"
	bookingOutcomeConflict = "conflict"
	bookingOutcomeInvalid  = "invalid"
	bookingOutcomeError    = "error"
)

const (
	msgDoctorInvalid      = "The selected doctor id is invalid."
	msgTimeFormat         = "The appointment time field must match the format Y-m-d H:i:s."
	msgTimeNotFuture      = "The appointment time field must be a date after now."
	msgDateFormat         = "The date field must match the format Y-m-d."
	msgDateBeforeToday    = "The date field must be a date after or equal to today."
	msgAppointmentMissing = "Appointment not found or already canceled."
)

// BookingService books, cancels and lists free slots. Every "now" and
// "today" comes from the injected clock in the clinic time zone.
type BookingService struct {
	appointments repositories.AppointmentRepository
	users        repositories.UserRepository
	slots        *SlotCalculator
	clock        clock.Clock
	loc          *time.Location
	metrics      *observability.Metrics
}

// NewBookingService creates a new booking service. metrics may be nil.
func NewBookingService(
	appointments repositories.AppointmentRepository,
	users repositories.UserRepository,
	clk clock.Clock,
	loc *time.Location,
	metrics *observability.Metrics,
) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		appointments: appointments,
		users:        users,
		slots:        NewSlotCalculator(appointments, loc),
		clock:        clk,
		loc:          loc,
		metrics:      metrics,
	}
}

// Book reserves appointmentTime ("YYYY-MM-DD HH:MM:SS", clinic time) with
// doctorID for patientID. Validation happens before any write; the insert
// itself is conditional so a taken slot yields a CONFLICT error.
func (s *BookingService) Book(ctx context.Context, patientID, doctorID, appointmentTime string) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.Book")
	defer span.End()

	fields := apperrors.FieldErrors{}
	slot, err := s.checkBooking(ctx, doctorID, appointmentTime, fields)
	if err != nil {
		s.recordOutcome(ctx, bookingOutcomeError)
		observability.RecordError(span, err)
		return nil, err
	}
	if len(fields) > 0 {
		s.recordOutcome(ctx, bookingOutcomeInvalid)
		return nil, apperrors.NewFieldValidationError(fields)
	}

	appointment := &entities.Appointment{
		UserID:          patientID,
		DoctorID:        doctorID,
		AppointmentTime: slot,
		Status:          entities.AppointmentStatusBooked,
	}

	if err := s.appointments.CreateIfSlotFree(ctx, appointment); err != nil {
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeConflict):
			s.recordOutcome(ctx, bookingOutcomeConflict)
		case apperrors.IsType(err, apperrors.ErrorTypeValidation):
			s.recordOutcome(ctx, bookingOutcomeInvalid)
		default:
			s.recordOutcome(ctx, bookingOutcomeError)
			observability.RecordError(span, err)
		}
		return nil, err
	}

	s.recordOutcome(ctx, bookingOutcomeBooked)
	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", doctorID).
		Time("appointment_time", slot).
		Msg("appointment booked")

	return appointment, nil
}

// CheckBooking adds the doctor and appointment time errors that need the
// store or the clock to fields. Fields already present are left alone.
// Only store failures are returned.
func (s *BookingService) CheckBooking(ctx context.Context, doctorID, appointmentTime string, fields apperrors.FieldErrors) error {
	_, err := s.checkBooking(ctx, doctorID, appointmentTime, fields)
	if err == nil && len(fields) > 0 {
		s.recordOutcome(ctx, bookingOutcomeInvalid)
	}
	return err
}

func (s *BookingService) checkBooking(ctx context.Context, doctorID, appointmentTime string, fields apperrors.FieldErrors) (time.Time, error) {
	if err := s.checkDoctor(ctx, doctorID, fields); err != nil {
		return time.Time{}, err
	}
	if fields.Has("appointment_time") {
		return time.Time{}, nil
	}

	slot, err := time.ParseInLocation(entities.DateTimeLayout, strings.TrimSpace(appointmentTime), s.loc)
	if err != nil {
		fields.Add("appointment_time", msgTimeFormat)
		return time.Time{}, nil
	}
	if !slot.After(s.clock.Now()) {
		fields.Add("appointment_time", msgTimeNotFuture)
		return time.Time{}, nil
	}
	return slot, nil
}

// Cancel hard-deletes the requester's booked appointment so its slot reopens.
// A foreign, cancelled, missing or malformed id gives the same NOT_FOUND error.
func (s *BookingService) Cancel(ctx context.Context, requesterID, appointmentID string) error {
	ctx, span := observability.StartSpan(ctx, "BookingService.Cancel")
	defer span.End()

	if _, err := uuid.Parse(appointmentID); err != nil {
		return apperrors.NewNotFoundError(msgAppointmentMissing)
	}

	if err := s.appointments.DeleteBookedByOwner(ctx, appointmentID, requesterID); err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			observability.RecordError(span, err)
		}
		return err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointmentID).
		Msg("appointment cancelled")

	return nil
}

// AvailableSlots validates doctorID and date ("YYYY-MM-DD", not before today)
// and returns the doctor's free starts for that day
func (s *BookingService) AvailableSlots(ctx context.Context, doctorID, date string) ([]time.Time, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.AvailableSlots")
	defer span.End()

	fields := apperrors.FieldErrors{}
	day, err := s.checkSlotsQuery(ctx, doctorID, date, fields)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldValidationError(fields)
	}

	slots, err := s.slots.AvailableSlots(ctx, doctorID, day)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return slots, nil
}

// CheckSlotsQuery adds the doctor and date errors that need the store or the
// clock to fields. Fields already present are left alone.
func (s *BookingService) CheckSlotsQuery(ctx context.Context, doctorID, date string, fields apperrors.FieldErrors) error {
	_, err := s.checkSlotsQuery(ctx, doctorID, date, fields)
	return err
}

func (s *BookingService) checkSlotsQuery(ctx context.Context, doctorID, date string, fields apperrors.FieldErrors) (time.Time, error) {
	if err := s.checkDoctor(ctx, doctorID, fields); err != nil {
		return time.Time{}, err
	}
	if fields.Has("date") {
		return time.Time{}, nil
	}

	day, err := time.ParseInLocation(entities.DateLayout, strings.TrimSpace(date), s.loc)
	if err != nil {
		fields.Add("date", msgDateFormat)
		return time.Time{}, nil
	}
	if day.Before(s.today()) {
		fields.Add("date", msgDateBeforeToday)
		return time.Time{}, nil
	}
	return day, nil
}

// checkDoctor adds a doctor_id field error when the id is malformed or
// unknown. Only store failures other than NOT_FOUND are returned.
func (s *BookingService) checkDoctor(ctx context.Context, doctorID string, fields apperrors.FieldErrors) error {
	if fields.Has("doctor_id") {
		return nil
	}
	if _, err := uuid.Parse(doctorID); err != nil {
		fields.Add("doctor_id", msgDoctorInvalid)
		return nil
	}

	if _, err := s.users.GetByID(ctx, doctorID); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			fields.Add("doctor_id", msgDoctorInvalid)
			return nil
		}
		return err
	}
	return nil
}

func (s *BookingService) today() time.Time {
	year, month, day := s.clock.Now().In(s.loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, s.loc)
}

func (s *BookingService) recordOutcome(ctx context.Context, outcome string) {
	observability.RecordBooking(ctx, s.metrics, outcome)
}
