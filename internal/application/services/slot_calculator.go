package services

import (
	"context"
	"time"

	"github.com/clinicbook/backend/internal/domain/repositories"
)

// Clinic day: 30-minute slots starting 09:00, last start 16:30
const (
	slotFirstStart = 9 * time.Hour
	slotLastStart  = 16*time.Hour + 30*time.Minute
	slotLength     = 30 * time.Minute
)

// SlotCalculator derives a doctor's free slots for a day from existing appointments
type SlotCalculator struct {
	appointments repositories.AppointmentRepository
	loc          *time.Location
}

// NewSlotCalculator creates a slot calculator for the clinic time zone
func NewSlotCalculator(appointments repositories.AppointmentRepository, loc *time.Location) *SlotCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotCalculator{appointments: appointments, loc: loc}
}

// AvailableSlots returns the canonical starts of date, ascending, minus every
// start whose time of day is held by an appointment of doctorID on that date.
// Appointments block their slot whatever their status.
func (c *SlotCalculator) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]time.Time, error) {
	year, month, day := date.In(c.loc).Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, c.loc)
	dayEnd := time.Date(year, month, day+1, 0, 0, 0, 0, c.loc)

	booked, err := c.appointments.ListTimesForDoctor(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	taken := make(map[int]struct{}, len(booked))
	for _, t := range booked {
		taken[minuteOfDay(t.In(c.loc))] = struct{}{}
	}

	slots := make([]time.Time, 0, int((slotLastStart-slotFirstStart)/slotLength)+1)
	for offset := slotFirstStart; offset <= slotLastStart; offset += slotLength {
		minutes := int(offset / time.Minute)
		if _, ok := taken[minutes]; ok {
			continue
		}
		slots = append(slots, time.Date(year, month, day, minutes/60, minutes%60, 0, 0, c.loc))
	}

	return slots, nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
