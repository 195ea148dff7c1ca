package usecase

import (
	"context"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"

	"github.com/google/uuid"
)

// CreatePrescriptionInput defines a new medication order.
type CreatePrescriptionInput struct {
	PatientID    uuid.UUID
	Medication   string
	Dosage       string
	Frequency    string
	StartDate    string
	EndDate      string
	RefillsTotal int
	Pharmacy     string
	Instructions string
	SideEffects  string
	IPAddress    string
}

// PrescriptionUsecase manages medication orders.
type PrescriptionUsecase interface {
	List(ctx context.Context, actor policy.Actor, filter entity.PrescriptionFilter) ([]*entity.Prescription, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*entity.Prescription, error)
	Create(ctx context.Context, actor policy.Actor, input *CreatePrescriptionInput) (*entity.Prescription, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, update *entity.PrescriptionUpdate, ipAddress string) (*entity.Prescription, error)
	RequestRefill(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) (*entity.Prescription, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID, ipAddress string) error
}
