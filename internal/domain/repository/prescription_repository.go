package repository

import (
	"context"
	"errors"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrPrescriptionNotFound is returned when a prescription is not found.
var ErrPrescriptionNotFound = errors.New("prescription not found")

// PrescriptionRepository defines persistence for prescriptions.
type PrescriptionRepository interface {
	Create(ctx context.Context, prescription *entity.Prescription) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error)
	ListAll(ctx context.Context, filter entity.PrescriptionFilter) ([]*entity.Prescription, error)
	Update(ctx context.Context, id uuid.UUID, update *entity.PrescriptionUpdate) error

	// ConsumeRefill decrements the remaining refills when at least one is left.
	// It returns false without writing when none remain.
	ConsumeRefill(ctx context.Context, id uuid.UUID) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
