package entity

import (
	"time"

	"github.com/google/uuid"
)

// LabResultStatus flags how a result compares to its reference range.
type LabResultStatus string

const (
	LabResultStatusNormal   LabResultStatus = "normal"
	LabResultStatusAbnormal LabResultStatus = "abnormal"
	LabResultStatusCritical LabResultStatus = "critical"
	LabResultStatusPending  LabResultStatus = "pending"
)

// IsValid checks if the status is a known value.
func (s LabResultStatus) IsValid() bool {
	switch s {
	case LabResultStatusNormal, LabResultStatusAbnormal, LabResultStatusCritical, LabResultStatusPending:
		return true
	default:
		return false
	}
}

// LabResult is one recorded test outcome for a patient.
type LabResult struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	TestName       string
	Category       string
	ResultValue    string
	ReferenceRange string
	Unit           string
	Status         LabResultStatus
	Notes          string
	TestDate       string
	ResultDate     string
	CreatedAt      time.Time

	DoctorFirstName string
	DoctorLastName  string
}
