package usecase

import (
	"context"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"

	"github.com/google/uuid"
)

// PatientRecords bundles everything on file for one patient.
type PatientRecords struct {
	Patient       *entity.User
	Appointments  []*entity.Appointment
	Prescriptions []*entity.Prescription
	LabResults    []*entity.LabResult
}

// CreateLabResultInput defines a lab result recorded by staff.
type CreateLabResultInput struct {
	TestName       string
	Category       string
	ResultValue    string
	ReferenceRange string
	Unit           string
	Status         entity.LabResultStatus
	Notes          string
	TestDate       string
	ResultDate     string
	IPAddress      string
}

// PatientUsecase exposes patient records to staff and to the patient itself.
type PatientUsecase interface {
	List(ctx context.Context, actor policy.Actor) ([]*entity.PatientSummary, error)
	Get(ctx context.Context, actor policy.Actor, patientID uuid.UUID, ipAddress string) (*entity.User, error)
	Records(ctx context.Context, actor policy.Actor, patientID uuid.UUID, ipAddress string) (*PatientRecords, error)
	LabResults(ctx context.Context, actor policy.Actor, patientID uuid.UUID) ([]*entity.LabResult, error)
	AddLabResult(ctx context.Context, actor policy.Actor, patientID uuid.UUID, input *CreateLabResultInput) (*entity.LabResult, error)
}
