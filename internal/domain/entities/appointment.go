package entities

import (
	"time"
)

// Wire layouts for appointment times and calendar dates
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a patient's booking of one slot with a doctor
type Appointment struct {
	ID              string            `json:"id" db:"id"`
	UserID          string            `json:"user_id" db:"user_id"`
	DoctorID        string            `json:"doctor_id" db:"doctor_id"`
	AppointmentTime time.Time         `json:"appointment_time" db:"appointment_time"`
	Status          AppointmentStatus `json:"status" db:"status"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// UpcomingAppointment is an appointment joined with the doctor it is with
type UpcomingAppointment struct {
	ID              string            `json:"id"`
	DoctorName      string            `json:"doctor_name"`
	Specialty       *string           `json:"specialty"`
	AppointmentTime time.Time         `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
}
