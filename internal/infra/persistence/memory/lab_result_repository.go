package memory

import (
	"cmp"
	"context"
	"slices"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"

	"github.com/google/uuid"
)

type labResultRepository struct {
	scope scope
}

func (r *labResultRepository) Create(_ context.Context, result *entity.LabResult) error {
	return r.scope.run(func(t *tables) error {
		if _, ok := t.users[result.PatientID]; !ok {
			return domainerrors.ErrValidationFailed.WrapMessage("lab result references an unknown patient")
		}

		if result.ID == uuid.Nil {
			result.ID = uuid.New()
		}
		result.CreatedAt = r.scope.now()

		stored := *result
		stored.DoctorFirstName, stored.DoctorLastName = "", ""
		t.labResults[stored.ID] = stored

		return nil
	})
}

func (r *labResultRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*entity.LabResult, error) {
	var results []*entity.LabResult
	err := r.scope.run(func(t *tables) error {
		for _, lr := range t.labResults {
			if lr.PatientID != patientID {
				continue
			}
			if doctor, ok := t.users[lr.DoctorID]; ok {
				lr.DoctorFirstName = doctor.FirstName
				lr.DoctorLastName = doctor.LastName
			}
			results = append(results, &lr)
		}

		return nil
	})
	slices.SortFunc(results, func(a, b *entity.LabResult) int {
		return cmp.Or(cmp.Compare(b.TestDate, a.TestDate), b.CreatedAt.Compare(a.CreatedAt))
	})

	return results, err
}
