package repository

import (
	"context"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// LabResultRepository defines persistence for lab results.
type LabResultRepository interface {
	Create(ctx context.Context, result *entity.LabResult) error

	// ListByPatient returns results ordered by test date, latest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*entity.LabResult, error)
}
