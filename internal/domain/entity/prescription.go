package entity

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionStatus tracks whether a medication is current.
type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "active"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
	PrescriptionStatusCancelled PrescriptionStatus = "cancelled"
	PrescriptionStatusExpired   PrescriptionStatus = "expired"
)

// IsValid checks if the status is a known value.
func (s PrescriptionStatus) IsValid() bool {
	switch s {
	case PrescriptionStatusActive, PrescriptionStatusCompleted, PrescriptionStatusCancelled, PrescriptionStatusExpired:
		return true
	default:
		return false
	}
}

// Prescription is a medication order written by a doctor for a patient.
type Prescription struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	DoctorID         uuid.UUID
	Medication       string
	Dosage           string
	Frequency        string
	StartDate        string
	EndDate          string
	RefillsRemaining int
	RefillsTotal     int
	Status           PrescriptionStatus
	Pharmacy         string
	Instructions     string
	SideEffects      string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	PatientFirstName string
	PatientLastName  string
	DoctorFirstName  string
	DoctorLastName   string
	DoctorSpecialty  string
}

// PrescriptionUpdate carries the fields a prescribing doctor may change.
type PrescriptionUpdate struct {
	Dosage           *string
	Frequency        *string
	EndDate          *string
	RefillsRemaining *int
	Status           *PrescriptionStatus
	Pharmacy         *string
	Instructions     *string
	SideEffects      *string
}

// IsEmpty reports whether no field is set.
func (u *PrescriptionUpdate) IsEmpty() bool {
	return u.Dosage == nil && u.Frequency == nil && u.EndDate == nil && u.RefillsRemaining == nil &&
		u.Status == nil && u.Pharmacy == nil && u.Instructions == nil && u.SideEffects == nil
}

// PrescriptionFilter narrows prescription listings.
type PrescriptionFilter struct {
	Status    PrescriptionStatus
	PatientID uuid.UUID
	Limit     int
}
