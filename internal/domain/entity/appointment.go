package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Slot grid bounds. Every doctor shares the same grid.
const (
	SlotDayStartHour = 8
	SlotDayEndHour   = 17
	SlotLength       = 30 * time.Minute

	// DateLayout is the calendar-day format used for appointment dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the 24h minute format used for slot start times.
	TimeLayout = "15:04"

	DefaultAppointmentDuration = 30
	DefaultAppointmentLocation = "Main Office"
)

// AppointmentStatus is a step in the visit lifecycle.
type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in-progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no-show"
)

// IsValid checks if the status is a known value.
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition may leave this status.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status machine has an edge from s to next,
// regardless of who is asking.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case AppointmentStatusConfirmed:
		return s == AppointmentStatusScheduled
	case AppointmentStatusInProgress:
		return s == AppointmentStatusConfirmed
	case AppointmentStatusCompleted:
		return s == AppointmentStatusConfirmed || s == AppointmentStatusInProgress
	case AppointmentStatusCancelled:
		return s == AppointmentStatusScheduled || s == AppointmentStatusConfirmed
	case AppointmentStatusNoShow:
		return true
	case AppointmentStatusScheduled:
		return false
	default:
		return false
	}
}

// AppointmentType classifies the visit.
type AppointmentType string

const (
	AppointmentTypeCheckup      AppointmentType = "checkup"
	AppointmentTypeFollowUp     AppointmentType = "follow-up"
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeEmergency    AppointmentType = "emergency"
	AppointmentTypeProcedure    AppointmentType = "procedure"
	AppointmentTypeLabWork      AppointmentType = "lab-work"
)

// IsValid checks if the type is a known value.
func (t AppointmentType) IsValid() bool {
	switch t {
	case AppointmentTypeCheckup, AppointmentTypeFollowUp, AppointmentTypeConsultation,
		AppointmentTypeEmergency, AppointmentTypeProcedure, AppointmentTypeLabWork:
		return true
	default:
		return false
	}
}

// Appointment is one scheduled clinical visit. (DoctorID, Date, Time) is unique
// among rows that are not cancelled.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      string // YYYY-MM-DD
	Time      string // HH:MM on the slot grid
	Duration  int    // Minutes. Informational only, the grid ignores it.
	Type      AppointmentType
	Status    AppointmentStatus
	Reason    string
	Notes     string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Display fields populated by joined reads.
	PatientFirstName string
	PatientLastName  string
	PatientEmail     string
	DoctorFirstName  string
	DoctorLastName   string
	DoctorSpecialty  string
}

// AppointmentUpdate carries the descriptive fields that may be edited in place.
// Date and time changes go through cancel and rebook so the slot invariant holds.
type AppointmentUpdate struct {
	Type     *AppointmentType
	Reason   *string
	Notes    *string
	Location *string
	Duration *int
}

// IsEmpty reports whether no field is set.
func (u *AppointmentUpdate) IsEmpty() bool {
	return u.Type == nil && u.Reason == nil && u.Notes == nil && u.Location == nil && u.Duration == nil
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	Status AppointmentStatus
	Date   string
	From   string
	To     string
	Limit  int
}

// AppointmentStats summarises a user's appointments.
type AppointmentStats struct {
	Total     int64 `json:"total"`
	Upcoming  int64 `json:"upcoming"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}

// SlotGrid returns every slot start time of a day in order.
func SlotGrid() []string {
	slots := make([]string, 0, (SlotDayEndHour-SlotDayStartHour)*int(time.Hour/SlotLength))
	for hour := SlotDayStartHour; hour < SlotDayEndHour; hour++ {
		for minute := 0; minute < 60; minute += int(SlotLength / time.Minute) {
			slots = append(slots, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}

	return slots
}

// FreeSlots returns the grid slots not present in booked, preserving grid order.
// Only a booking's start slot is occupied, regardless of its duration.
func FreeSlots(booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	grid := SlotGrid()
	free := make([]string, 0, len(grid))
	for _, slot := range grid {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}

	return free
}

// IsGridSlot reports whether t is a slot start on the daily grid.
func IsGridSlot(t string) bool {
	return slices.Contains(SlotGrid(), t)
}

// ParseAppointmentDate validates a YYYY-MM-DD calendar date.
func ParseAppointmentDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}
