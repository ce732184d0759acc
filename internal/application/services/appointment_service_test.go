package services_test

import (
	"context"
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

func TestAppointmentService_MyUpcomingAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the soonest booked appointment from now", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		specialty := "Cardiology"
		upcoming := &entities.UpcomingAppointment{
			ID:              "appt-1",
			DoctorName:      "Dr. Ada",
			Specialty:       &specialty,
			AppointmentTime: bookingNow.Add(26 * time.Hour),
			Status:          entities.AppointmentStatusBooked,
		}
		repo.On("NextBookedForUser", mock.Anything, patientID, bookingNow).Return(upcoming, nil)

		svc := services.NewAppointmentService(repo, new(MockUserRepository), clock.NewFixed(bookingNow))
		got, err := svc.MyUpcomingAppointment(ctx, patientID)

		require.NoError(t, err)
		assert.Equal(t, upcoming, got)
	})

	t.Run("none is not found", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		repo.On("NextBookedForUser", mock.Anything, patientID, bookingNow).
			Return(nil, apperrors.NewNotFoundError("No upcoming appointment found."))

		svc := services.NewAppointmentService(repo, new(MockUserRepository), clock.NewFixed(bookingNow))
		_, err := svc.MyUpcomingAppointment(ctx, patientID)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestAppointmentService_AppointmentsByPatientEmail(t *testing.T) {
	ctx := context.Background()
	patient := &entities.User{ID: patientID, Email: "pat@example.com", Role: entities.RolePatient}
	history := []*entities.Appointment{
		{ID: "appt-1", UserID: patientID, DoctorID: doctorID, Status: entities.AppointmentStatusBooked},
		{ID: "appt-2", UserID: patientID, DoctorID: doctorID, Status: entities.AppointmentStatusCancelled},
	}

	setup := func() (*MockAppointmentRepository, *MockUserRepository, *services.AppointmentService) {
		repo := new(MockAppointmentRepository)
		users := new(MockUserRepository)
		return repo, users, services.NewAppointmentService(repo, users, clock.NewFixed(bookingNow))
	}

	t.Run("empty email is a bad request", func(t *testing.T) {
		_, users, svc := setup()

		_, err := svc.AppointmentsByPatientEmail(ctx, entities.Caller{UserID: patientID, Role: entities.RolePatient}, " ")

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeBadRequest, appErr.Type)
		assert.Equal(t, "Email is required", appErr.Message)
		users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		_, users, svc := setup()
		users.On("GetByEmail", mock.Anything, "ghost@example.com").
			Return(nil, apperrors.NewNotFoundError("Patient not found"))

		_, err := svc.AppointmentsByPatientEmail(ctx, entities.Caller{UserID: otherID, Role: entities.RoleStaff}, "ghost@example.com")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("patient sees own history", func(t *testing.T) {
		repo, users, svc := setup()
		users.On("GetByEmail", mock.Anything, "pat@example.com").Return(patient, nil)
		repo.On("ListByUser", mock.Anything, patientID).Return(history, nil)

		got, err := svc.AppointmentsByPatientEmail(ctx, entities.Caller{UserID: patientID, Role: entities.RolePatient}, "pat@example.com")

		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("staff sees any patient", func(t *testing.T) {
		repo, users, svc := setup()
		users.On("GetByEmail", mock.Anything, "pat@example.com").Return(patient, nil)
		repo.On("ListByUser", mock.Anything, patientID).Return(history, nil)

		got, err := svc.AppointmentsByPatientEmail(ctx, entities.Caller{UserID: otherID, Role: entities.RoleStaff}, "pat@example.com")

		require.NoError(t, err)
		assert.Equal(t, history, got)
	})

	t.Run("another patient gets the same not found", func(t *testing.T) {
		repo, users, svc := setup()
		users.On("GetByEmail", mock.Anything, "pat@example.com").Return(patient, nil)

		_, err := svc.AppointmentsByPatientEmail(ctx, entities.Caller{UserID: otherID, Role: entities.RolePatient}, "pat@example.com")

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
		assert.Equal(t, "Patient not found", appErr.Message)
		repo.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything)
	})
}
