package memory

import (
	"context"
	"slices"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"

	"github.com/google/uuid"
)

type prescriptionRepository struct {
	scope scope
}

func (r *prescriptionRepository) Create(_ context.Context, prescription *entity.Prescription) error {
	return r.scope.run(func(t *tables) error {
		_, patientOK := t.users[prescription.PatientID]
		_, doctorOK := t.users[prescription.DoctorID]
		if !patientOK || !doctorOK {
			return domainerrors.ErrValidationFailed.WrapMessage("prescription references an unknown user")
		}

		if prescription.ID == uuid.Nil {
			prescription.ID = uuid.New()
		}
		now := r.scope.now()
		prescription.CreatedAt = now
		prescription.UpdatedAt = now

		stored := *prescription
		stored.PatientFirstName, stored.PatientLastName = "", ""
		stored.DoctorFirstName, stored.DoctorLastName, stored.DoctorSpecialty = "", "", ""
		t.prescriptions[stored.ID] = stored

		return nil
	})
}

func (r *prescriptionRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Prescription, error) {
	var found *entity.Prescription
	err := r.scope.run(func(t *tables) error {
		p, ok := t.prescriptions[id]
		if !ok {
			return repository.ErrPrescriptionNotFound
		}
		found = withPrescriptionParties(t, p)

		return nil
	})

	return found, err
}

func (r *prescriptionRepository) ListByPatient(_ context.Context, patientID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	return r.list(func(p *entity.Prescription) bool { return p.PatientID == patientID }, filter), nil
}

func (r *prescriptionRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	return r.list(func(p *entity.Prescription) bool { return p.DoctorID == doctorID }, filter), nil
}

func (r *prescriptionRepository) ListAll(_ context.Context, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	return r.list(func(*entity.Prescription) bool { return true }, filter), nil
}

func (r *prescriptionRepository) Update(_ context.Context, id uuid.UUID, update *entity.PrescriptionUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	return r.scope.run(func(t *tables) error {
		p, ok := t.prescriptions[id]
		if !ok {
			return repository.ErrPrescriptionNotFound
		}
		assign(&p.Dosage, update.Dosage)
		assign(&p.Frequency, update.Frequency)
		assign(&p.EndDate, update.EndDate)
		assign(&p.RefillsRemaining, update.RefillsRemaining)
		assign(&p.Status, update.Status)
		assign(&p.Pharmacy, update.Pharmacy)
		assign(&p.Instructions, update.Instructions)
		assign(&p.SideEffects, update.SideEffects)
		p.UpdatedAt = r.scope.now()
		t.prescriptions[id] = p

		return nil
	})
}

func (r *prescriptionRepository) ConsumeRefill(_ context.Context, id uuid.UUID) (bool, error) {
	var consumed bool
	err := r.scope.run(func(t *tables) error {
		p, ok := t.prescriptions[id]
		if !ok {
			return repository.ErrPrescriptionNotFound
		}
		if p.RefillsRemaining <= 0 {
			return nil
		}
		p.RefillsRemaining--
		p.UpdatedAt = r.scope.now()
		t.prescriptions[id] = p
		consumed = true

		return nil
	})

	return consumed, err
}

func (r *prescriptionRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.scope.run(func(t *tables) error {
		if _, ok := t.prescriptions[id]; !ok {
			return repository.ErrPrescriptionNotFound
		}
		delete(t.prescriptions, id)

		return nil
	})
}

func (r *prescriptionRepository) list(match func(*entity.Prescription) bool, filter entity.PrescriptionFilter) []*entity.Prescription {
	var prescriptions []*entity.Prescription
	_ = r.scope.run(func(t *tables) error {
		for _, p := range t.prescriptions {
			if !match(&p) {
				continue
			}
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
			if filter.PatientID != uuid.Nil && p.PatientID != filter.PatientID {
				continue
			}
			prescriptions = append(prescriptions, withPrescriptionParties(t, p))
		}

		return nil
	})
	slices.SortFunc(prescriptions, func(a, b *entity.Prescription) int { return b.CreatedAt.Compare(a.CreatedAt) })

	return limit(prescriptions, filter.Limit)
}

func withPrescriptionParties(t *tables, p entity.Prescription) *entity.Prescription {
	if patient, ok := t.users[p.PatientID]; ok {
		p.PatientFirstName = patient.FirstName
		p.PatientLastName = patient.LastName
	}
	if doctor, ok := t.users[p.DoctorID]; ok {
		p.DoctorFirstName = doctor.FirstName
		p.DoctorLastName = doctor.LastName
		p.DoctorSpecialty = doctor.Specialty
	}

	return &p
}
