package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/backend/internal/application/services"
	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/pkg/clock"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

func TestBooking_BookConflictCancelReopens(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(
		&entities.User{ID: doctorID, Name: "Dr. Ada", Role: entities.RoleDoctor},
		&entities.User{ID: patientID, Name: "Pat", Role: entities.RolePatient},
	)
	svc := services.NewBookingService(store, memoryUsers{store}, clock.NewFixed(bookingNow), time.UTC, nil)
	bookedAt := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	appointment, err := svc.Book(ctx, patientID, doctorID, "2025-03-10 10:30:00")
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(ctx, doctorID, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, slots, 15)
	assert.NotContains(t, slots, bookedAt)

	_, err = svc.Book(ctx, otherID, doctorID, "2025-03-10 10:30:00")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Equal(t, 1, store.count())

	err = svc.Cancel(ctx, otherID, appointment.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	require.NoError(t, svc.Cancel(ctx, patientID, appointment.ID))

	err = svc.Cancel(ctx, patientID, appointment.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	slots, err = svc.AvailableSlots(ctx, doctorID, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, slots, 16)
	assert.Contains(t, slots, bookedAt)
}

func TestBooking_ConcurrentBookingsOfOneSlot(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(&entities.User{ID: doctorID, Name: "Dr. Ada", Role: entities.RoleDoctor})
	svc := services.NewBookingService(store, memoryUsers{store}, clock.NewFixed(bookingNow), time.UTC, nil)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(ctx, patientID, doctorID, "2025-03-10 11:00:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case apperrors.IsType(err, apperrors.ErrorTypeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, booked)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, store.count())
}
