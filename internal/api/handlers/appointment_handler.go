package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinicbook/backend/internal/api/middleware"
	"github.com/clinicbook/backend/internal/domain/entities"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

// BookingService defines the interface for booking operations
type BookingService interface {
	Book(ctx context.Context, patientID, doctorID, appointmentTime string) (*entities.Appointment, error)
	Cancel(ctx context.Context, requesterID, appointmentID string) error
	AvailableSlots(ctx context.Context, doctorID, date string) ([]time.Time, error)
	CheckBooking(ctx context.Context, doctorID, appointmentTime string, fields apperrors.FieldErrors) error
	CheckSlotsQuery(ctx context.Context, doctorID, date string, fields apperrors.FieldErrors) error
}

// AppointmentService defines the interface for appointment lookups
type AppointmentService interface {
	MyUpcomingAppointment(ctx context.Context, patientID string) (*entities.UpcomingAppointment, error)
	AppointmentsByPatientEmail(ctx context.Context, caller entities.Caller, email string) ([]*entities.Appointment, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	booking      BookingService
	appointments AppointmentService
	loc          *time.Location
}

// NewAppointmentHandler creates a new appointment handler. Times are rendered
// in loc.
func NewAppointmentHandler(booking BookingService, appointments AppointmentService, loc *time.Location) *AppointmentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentHandler{
		booking:      booking,
		appointments: appointments,
		loc:          loc,
	}
}

type bookAppointmentRequest struct {
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	AppointmentTime string `json:"appointment_time" validate:"required,datetime=2006-01-02 15:04:05"`
}

type availableSlotsQuery struct {
	DoctorID string `query:"doctor_id" validate:"required,uuid"`
	Date     string `query:"date" validate:"required,datetime=2006-01-02"`
}

type appointmentResponse struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	DoctorID        string `json:"doctor_id"`
	AppointmentTime string `json:"appointment_time"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type upcomingAppointmentResponse struct {
	ID              string  `json:"id"`
	DoctorName      string  `json:"doctor_name"`
	Specialty       *string `json:"specialty"`
	AppointmentTime string  `json:"appointment_time"`
	Status          string  `json:"status"`
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	var req bookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	// Shape errors come from the tags; the service adds the ones that need
	// the store or the clock so every failing field is reported at once.
	fields, err := requestFieldErrors(req)
	if err == nil && len(fields) > 0 {
		if err = h.booking.CheckBooking(r.Context(), req.DoctorID, req.AppointmentTime, fields); err == nil {
			err = apperrors.NewFieldValidationError(fields)
		}
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointment, err := h.booking.Book(r.Context(), caller.UserID, req.DoctorID, req.AppointmentTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Appointment booked successfully.",
		"data":    h.toAppointmentResponse(appointment),
	})
}

// GetAvailableSlots handles GET /api/appointments/available-slots
func (h *AppointmentHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	query := availableSlotsQuery{
		DoctorID: r.URL.Query().Get("doctor_id"),
		Date:     r.URL.Query().Get("date"),
	}
	fields, err := requestFieldErrors(query)
	if err == nil && len(fields) > 0 {
		if err = h.booking.CheckSlotsQuery(r.Context(), query.DoctorID, query.Date, fields); err == nil {
			err = apperrors.NewFieldValidationError(fields)
		}
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	slots, err := h.booking.AvailableSlots(r.Context(), query.DoctorID, query.Date)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	formatted := make([]string, 0, len(slots))
	for _, slot := range slots {
		formatted = append(formatted, h.format(slot))
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Available slots retrieved.",
		"data":    formatted,
	})
}

// GetMyAppointment handles GET /api/appointments/mine
func (h *AppointmentHandler) GetMyAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	upcoming, err := h.appointments.MyUpcomingAppointment(r.Context(), caller.UserID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Appointment retrieved successfully.",
		"data": upcomingAppointmentResponse{
			ID:              upcoming.ID,
			DoctorName:      upcoming.DoctorName,
			Specialty:       upcoming.Specialty,
			AppointmentTime: h.format(upcoming.AppointmentTime),
			Status:          string(upcoming.Status),
		},
	})
}

// CancelAppointment handles DELETE /api/appointments/{id}
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if err := h.booking.Cancel(r.Context(), caller.UserID, r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Appointment cancelled successfully.",
	})
}

// GetAppointmentsByEmail handles GET /api/appointments/by-email
func (h *AppointmentHandler) GetAppointmentsByEmail(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	appointments, err := h.appointments.AppointmentsByPatientEmail(r.Context(), caller, r.URL.Query().Get("email"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, h.toAppointmentResponse(appointment))
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": out,
	})
}

func (h *AppointmentHandler) format(t time.Time) string {
	return t.In(h.loc).Format(entities.DateTimeLayout)
}

func (h *AppointmentHandler) toAppointmentResponse(a *entities.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		UserID:          a.UserID,
		DoctorID:        a.DoctorID,
		AppointmentTime: h.format(a.AppointmentTime),
		Status:          string(a.Status),
		CreatedAt:       h.format(a.CreatedAt),
		UpdatedAt:       h.format(a.UpdatedAt),
	}
}
