package entities

import (
	"time"
)

// Role is what a user is allowed to act as
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
)

// User is a patient, doctor or staff account
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	Specialty *string   `json:"specialty,omitempty" db:"specialty"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Caller is the authenticated identity behind a request
type Caller struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the caller may act on other patients' records
func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff
}
