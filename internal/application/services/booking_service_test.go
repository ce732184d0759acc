package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/backend/internal/application/services"
	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/pkg/clock"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

var bookingNow = time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)

func newBookingService(repo *MockAppointmentRepository, users *MockUserRepository) *services.BookingService {
	return services.NewBookingService(repo, users, clock.NewFixed(bookingNow), time.UTC, nil)
}

func knownDoctor(users *MockUserRepository) {
	users.On("GetByID", mock.Anything, doctorID).
		Return(&entities.User{ID: doctorID, Name: "Dr. Ada", Role: entities.RoleDoctor}, nil)
}

func fieldErrors(t *testing.T, err error) apperrors.FieldErrors {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	return appErr.Fields
}

func TestBookingService_Book(t *testing.T) {
	ctx := context.Background()

	t.Run("successfully books a future slot", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		knownDoctor(users)

		want := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
		repo.On("CreateIfSlotFree", mock.Anything, mock.MatchedBy(func(a *entities.Appointment) bool {
			return a.UserID == patientID &&
				a.DoctorID == doctorID &&
				a.AppointmentTime.Equal(want) &&
				a.Status == entities.AppointmentStatusBooked
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*entities.Appointment).ID = "appt-1"
		}).Return(nil)

		appointment, err := newBookingService(repo, users).Book(ctx, patientID, doctorID, "2025-03-10 10:30:00")

		require.NoError(t, err)
		assert.Equal(t, "appt-1", appointment.ID)
		repo.AssertExpectations(t)
	})

	t.Run("past or present time never reaches the store", func(t *testing.T) {
		for _, when := range []string{"2025-03-08 10:00:00", "2025-03-09 08:00:00"} {
			repo := new(MockAppointmentRepository)
			users := new(MockUserRepository)
			knownDoctor(users)

			_, err := newBookingService(repo, users).Book(ctx, patientID, doctorID, when)

			fields := fieldErrors(t, err)
			assert.Equal(t, []string{"The appointment time field must be a date after now."}, fields["appointment_time"])
			repo.AssertNotCalled(t, "CreateIfSlotFree", mock.Anything, mock.Anything)
		}
	})

	t.Run("malformed time is a format error", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		knownDoctor(users)

		_, err := newBookingService(repo, users).Book(ctx, patientID, doctorID, "2025-03-10T10:30")

		fields := fieldErrors(t, err)
		assert.Equal(t, []string{"The appointment time field must match the format Y-m-d H:i:s."}, fields["appointment_time"])
	})

	t.Run("unknown doctor and empty time are reported together", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		users.On("GetByID", mock.Anything, otherID).Return(nil, apperrors.NewNotFoundError("User not found"))

		_, err := newBookingService(repo, users).Book(ctx, patientID, otherID, "")

		fields := fieldErrors(t, err)
		assert.Equal(t, []string{"The selected doctor id is invalid."}, fields["doctor_id"])
		assert.Equal(t, []string{"The appointment time field must match the format Y-m-d H:i:s."}, fields["appointment_time"])
	})

	t.Run("non-uuid doctor id skips the lookup", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)

		_, err := newBookingService(repo, users).Book(ctx, patientID, "42", "2025-03-10 10:30:00")

		assert.Contains(t, fieldErrors(t, err), "doctor_id")
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("conflict is passed through", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		knownDoctor(users)
		repo.On("CreateIfSlotFree", mock.Anything, mock.Anything).
			Return(apperrors.NewConflictError("This appointment slot is already booked."))

		_, err := newBookingService(repo, users).Book(ctx, patientID, doctorID, "2025-03-10 10:30:00")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("doctor lookup failure is not a validation error", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		users.On("GetByID", mock.Anything, doctorID).
			Return(nil, apperrors.NewInternalError("failed to get user", errors.New("db down")))

		_, err := newBookingService(repo, users).Book(ctx, patientID, doctorID, "2025-03-10 10:30:00")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()
	appointmentID := "9d2b7c1e-4f3a-4b5c-8d6e-7f8a9b0c1d44"

	t.Run("deletes the owner's appointment", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		repo.On("DeleteBookedByOwner", mock.Anything, appointmentID, patientID).Return(nil)

		err := newBookingService(repo, new(MockUserRepository)).Cancel(ctx, patientID, appointmentID)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("no match is not found", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		repo.On("DeleteBookedByOwner", mock.Anything, appointmentID, otherID).
			Return(apperrors.NewNotFoundError("Appointment not found or already canceled."))

		err := newBookingService(repo, new(MockUserRepository)).Cancel(ctx, otherID, appointmentID)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("malformed id is not found without a query", func(t *testing.T) {
		repo := new(MockAppointmentRepository)

		err := newBookingService(repo, new(MockUserRepository)).Cancel(ctx, patientID, "abc")

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
		assert.Equal(t, "Appointment not found or already canceled.", appErr.Message)
		repo.AssertNotCalled(t, "DeleteBookedByOwner", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingService_AvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("today is allowed", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		knownDoctor(users)
		today := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
		repo.On("ListTimesForDoctor", mock.Anything, doctorID, today, today.AddDate(0, 0, 1)).
			Return([]time.Time{}, nil)

		slots, err := newBookingService(repo, users).AvailableSlots(ctx, doctorID, "2025-03-09")

		require.NoError(t, err)
		assert.Len(t, slots, 16)
	})

	t.Run("yesterday is rejected", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		knownDoctor(users)

		_, err := newBookingService(repo, users).AvailableSlots(ctx, doctorID, "2025-03-08")

		assert.Equal(t, []string{"The date field must be a date after or equal to today."}, fieldErrors(t, err)["date"])
		repo.AssertNotCalled(t, "ListTimesForDoctor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty inputs are invalid", func(t *testing.T) {
		users := new(MockUserRepository)
		_, err := newBookingService(new(MockAppointmentRepository), users).AvailableSlots(ctx, "", "")

		fields := fieldErrors(t, err)
		assert.Equal(t, []string{"The selected doctor id is invalid."}, fields["doctor_id"])
		assert.Equal(t, []string{"The date field must match the format Y-m-d."}, fields["date"])
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("bad date format", func(t *testing.T) {
		users := new(MockUserRepository)
		knownDoctor(users)

		_, err := newBookingService(new(MockAppointmentRepository), users).AvailableSlots(ctx, doctorID, "10/03/2025")

		assert.Equal(t, []string{"The date field must match the format Y-m-d."}, fieldErrors(t, err)["date"])
	})
}

func TestBookingService_CheckBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("adds only fields not already reported", func(t *testing.T) {
		users := new(MockUserRepository)
		fields := apperrors.FieldErrors{}
		fields.Add("doctor_id", "The doctor id field is required.")

		err := newBookingService(new(MockAppointmentRepository), users).CheckBooking(ctx, "", "2025-03-08 10:00:00", fields)

		require.NoError(t, err)
		assert.Equal(t, []string{"The doctor id field is required."}, fields["doctor_id"])
		assert.Equal(t, []string{"The appointment time field must be a date after now."}, fields["appointment_time"])
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("checks the doctor when the time is already rejected", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByID", mock.Anything, otherID).Return(nil, apperrors.NewNotFoundError("User not found"))
		fields := apperrors.FieldErrors{}
		fields.Add("appointment_time", "The appointment time field must match the format Y-m-d H:i:s.")

		err := newBookingService(new(MockAppointmentRepository), users).CheckBooking(ctx, otherID, "garbage", fields)

		require.NoError(t, err)
		assert.Equal(t, []string{"The selected doctor id is invalid."}, fields["doctor_id"])
		assert.Len(t, fields["appointment_time"], 1)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByID", mock.Anything, doctorID).
			Return(nil, apperrors.NewInternalError("failed to get user", errors.New("db down")))
		fields := apperrors.FieldErrors{}
		fields.Add("appointment_time", "The appointment time field is required.")

		err := newBookingService(new(MockAppointmentRepository), users).CheckBooking(ctx, doctorID, "", fields)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestBookingService_CheckSlotsQuery(t *testing.T) {
	fields := apperrors.FieldErrors{}
	fields.Add("doctor_id", "The doctor id field is required.")

	err := newBookingService(new(MockAppointmentRepository), new(MockUserRepository)).
		CheckSlotsQuery(context.Background(), "", "2025-03-08", fields)

	require.NoError(t, err)
	assert.Equal(t, []string{"The doctor id field is required."}, fields["doctor_id"])
	assert.Equal(t, []string{"The date field must be a date after or equal to today."}, fields["date"])
}
