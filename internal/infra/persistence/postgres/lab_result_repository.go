package postgres

import (
	"context"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type labResultRepository struct {
	db *gorm.DB
}

// NewLabResultRepository is the constructor for labResultRepository.
func NewLabResultRepository(db *gorm.DB) repository.LabResultRepository {
	return &labResultRepository{db: db}
}

func (repo *labResultRepository) Create(ctx context.Context, result *entity.LabResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	resultM := &model.LabResultModel{
		ID:             result.ID,
		PatientID:      result.PatientID,
		DoctorID:       result.DoctorID,
		TestName:       result.TestName,
		Category:       result.Category,
		ResultValue:    result.ResultValue,
		ReferenceRange: result.ReferenceRange,
		Unit:           result.Unit,
		Status:         string(result.Status),
		Notes:          result.Notes,
		TestDate:       result.TestDate,
		ResultDate:     result.ResultDate,
	}
	if err := repo.db.WithContext(ctx).Omit("Doctor").Create(resultM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create lab result")
	}
	result.CreatedAt = resultM.CreatedAt

	return nil
}

func (repo *labResultRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*entity.LabResult, error) {
	var resultsM []*model.LabResultModel
	err := repo.db.WithContext(ctx).Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("test_date DESC, created_at DESC").
		Find(&resultsM).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list lab results")
	}

	results := make([]*entity.LabResult, 0, len(resultsM))
	for _, m := range resultsM {
		result := &entity.LabResult{
			ID:             m.ID,
			PatientID:      m.PatientID,
			DoctorID:       m.DoctorID,
			TestName:       m.TestName,
			Category:       m.Category,
			ResultValue:    m.ResultValue,
			ReferenceRange: m.ReferenceRange,
			Unit:           m.Unit,
			Status:         entity.LabResultStatus(m.Status),
			Notes:          m.Notes,
			TestDate:       m.TestDate,
			ResultDate:     m.ResultDate,
			CreatedAt:      m.CreatedAt,
		}
		if m.Doctor != nil {
			result.DoctorFirstName = m.Doctor.FirstName
			result.DoctorLastName = m.Doctor.LastName
		}
		results = append(results, result)
	}

	return results, nil
}
