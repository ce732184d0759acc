package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/clinicbook/backend/internal/domain/entities"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

const (
	doctorID  = "7b0c2b5e-2a53-4a0a-9d7e-6f0f1b9f3c11"
	patientID = "2f4f6c1a-8e0d-4b7e-a1a4-0d3c9e7b5a22"
	otherID   = "c3a9e1f0-5b6d-4e2f-8a7c-1d2e3f4a5b33"
)

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) CreateIfSlotFree(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) ListTimesForDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	args := m.Called(ctx, doctorID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockAppointmentRepository) DeleteBookedByOwner(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockAppointmentRepository) NextBookedForUser(ctx context.Context, userID string, from time.Time) (*entities.UpcomingAppointment, error) {
	args := m.Called(ctx, userID, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UpcomingAppointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Appointment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

// memoryStore is an in-process appointment and user store with the same
// conflict rule as the database: one booked row per (doctor, time).
type memoryStore struct {
	mu           sync.Mutex
	users        map[string]*entities.User
	appointments map[string]*entities.Appointment
}

func newMemoryStore(users ...*entities.User) *memoryStore {
	s := &memoryStore{
		users:        map[string]*entities.User{},
		appointments: map[string]*entities.Appointment{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) CreateIfSlotFree(_ context.Context, appointment *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appointments {
		if existing.DoctorID == appointment.DoctorID &&
			existing.Status == entities.AppointmentStatusBooked &&
			existing.AppointmentTime.Equal(appointment.AppointmentTime) {
			return apperrors.NewConflictError("This appointment slot is already booked.")
		}
	}
	appointment.ID = uuid.NewString()
	stored := *appointment
	s.appointments[stored.ID] = &stored
	return nil
}

func (s *memoryStore) ListTimesForDoctor(_ context.Context, doctorID string, from, to time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var times []time.Time
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			times = append(times, a.AppointmentTime)
		}
	}
	return times, nil
}

func (s *memoryStore) DeleteBookedByOwner(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.UserID != userID || a.Status != entities.AppointmentStatusBooked {
		return apperrors.NewNotFoundError("Appointment not found or already canceled.")
	}
	delete(s.appointments, id)
	return nil
}

func (s *memoryStore) NextBookedForUser(_ context.Context, userID string, from time.Time) (*entities.UpcomingAppointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *entities.Appointment
	for _, a := range s.appointments {
		if a.UserID != userID || a.Status != entities.AppointmentStatusBooked || a.AppointmentTime.Before(from) {
			continue
		}
		if next == nil || a.AppointmentTime.Before(next.AppointmentTime) {
			next = a
		}
	}
	if next == nil {
		return nil, apperrors.NewNotFoundError("No upcoming appointment found.")
	}
	doctor := s.users[next.DoctorID]
	return &entities.UpcomingAppointment{
		ID:              next.ID,
		DoctorName:      doctor.Name,
		Specialty:       doctor.Specialty,
		AppointmentTime: next.AppointmentTime,
		Status:          next.Status,
	}, nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string) ([]*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*entities.Appointment{}
	for _, a := range s.appointments {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appointments)
}

type memoryUsers struct {
	store *memoryStore
}

func (u memoryUsers) GetByID(_ context.Context, id string) (*entities.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if user, ok := u.store.users[id]; ok {
		return user, nil
	}
	return nil, apperrors.NewNotFoundError("User not found")
}

func (u memoryUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, user := range u.store.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperrors.NewNotFoundError("Patient not found")
}
