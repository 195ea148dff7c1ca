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

type prescriptionRepository struct {
	db *gorm.DB
}

// NewPrescriptionRepository is the constructor for prescriptionRepository.
func NewPrescriptionRepository(db *gorm.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func (repo *prescriptionRepository) Create(ctx context.Context, prescription *entity.Prescription) error {
	if prescription.ID == uuid.Nil {
		prescription.ID = uuid.New()
	}

	prescriptionM := fromPrescriptionDomain(prescription)
	if err := repo.db.WithContext(ctx).Omit("Patient", "Doctor").Create(prescriptionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("prescription references an unknown user")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create prescription")
	}

	prescription.CreatedAt = prescriptionM.CreatedAt
	prescription.UpdatedAt = prescriptionM.UpdatedAt

	return nil
}

func (repo *prescriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error) {
	var prescriptionM model.PrescriptionModel
	if err := repo.withParties(ctx).Where("prescriptions.id = ?", id).First(&prescriptionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPrescriptionNotFound
		}

		return nil, errors.Wrap(err, "failed to find prescription")
	}

	return toPrescriptionDomain(&prescriptionM), nil
}

func (repo *prescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	query := repo.withParties(ctx).Where("prescriptions.patient_id = ?", patientID)

	return repo.list(applyPrescriptionFilter(query, filter), "failed to list patient prescriptions")
}

func (repo *prescriptionRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	query := repo.withParties(ctx).Where("prescriptions.doctor_id = ?", doctorID)

	return repo.list(applyPrescriptionFilter(query, filter), "failed to list doctor prescriptions")
}

func (repo *prescriptionRepository) ListAll(ctx context.Context, filter entity.PrescriptionFilter) ([]*entity.Prescription, error) {
	return repo.list(applyPrescriptionFilter(repo.withParties(ctx), filter), "failed to list prescriptions")
}

func (repo *prescriptionRepository) Update(ctx context.Context, id uuid.UUID, update *entity.PrescriptionUpdate) error {
	columns := prescriptionUpdateColumns(update)
	if len(columns) == 0 {
		return nil
	}

	result := repo.db.WithContext(ctx).Model(&model.PrescriptionModel{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update prescription")
	}
	if result.RowsAffected == 0 {
		return repository.ErrPrescriptionNotFound
	}

	return nil
}

// ConsumeRefill decrements in a single conditional statement so two concurrent
// requests cannot both take the last refill.
func (repo *prescriptionRepository) ConsumeRefill(ctx context.Context, id uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).Model(&model.PrescriptionModel{}).
		Where("id = ? AND refills_remaining > 0", id).
		Updates(map[string]any{"refills_remaining": gorm.Expr("refills_remaining - 1")})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to consume refill")
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.PrescriptionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check prescription")
	}
	if count == 0 {
		return false, repository.ErrPrescriptionNotFound
	}

	return false, nil
}

func (repo *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PrescriptionModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete prescription")
	}
	if result.RowsAffected == 0 {
		return repository.ErrPrescriptionNotFound
	}

	return nil
}

func (repo *prescriptionRepository) withParties(ctx context.Context) *gorm.DB {
	return repo.db.WithContext(ctx).Model(&model.PrescriptionModel{}).Preload("Patient").Preload("Doctor")
}

func (repo *prescriptionRepository) list(query *gorm.DB, msg string) ([]*entity.Prescription, error) {
	var prescriptionsM []*model.PrescriptionModel
	if err := query.Order("prescriptions.created_at DESC").Find(&prescriptionsM).Error; err != nil {
		return nil, errors.Wrap(err, msg)
	}

	prescriptions := make([]*entity.Prescription, 0, len(prescriptionsM))
	for _, prescriptionM := range prescriptionsM {
		prescriptions = append(prescriptions, toPrescriptionDomain(prescriptionM))
	}

	return prescriptions, nil
}

func applyPrescriptionFilter(query *gorm.DB, filter entity.PrescriptionFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("prescriptions.status = ?", string(filter.Status))
	}
	if filter.PatientID != uuid.Nil {
		query = query.Where("prescriptions.patient_id = ?", filter.PatientID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	return query
}

// --- Mapper Functions ---

func prescriptionUpdateColumns(update *entity.PrescriptionUpdate) map[string]any {
	columns := make(map[string]any)
	if update == nil {
		return columns
	}

	setString(columns, "dosage", update.Dosage)
	setString(columns, "frequency", update.Frequency)
	setString(columns, "end_date", update.EndDate)
	if update.RefillsRemaining != nil {
		columns["refills_remaining"] = *update.RefillsRemaining
	}
	if update.Status != nil {
		columns["status"] = string(*update.Status)
	}
	setString(columns, "pharmacy", update.Pharmacy)
	setString(columns, "instructions", update.Instructions)
	setString(columns, "side_effects", update.SideEffects)

	return columns
}

func toPrescriptionDomain(data *model.PrescriptionModel) *entity.Prescription {
	if data == nil {
		return nil
	}

	prescription := &entity.Prescription{
		ID:               data.ID,
		PatientID:        data.PatientID,
		DoctorID:         data.DoctorID,
		Medication:       data.Medication,
		Dosage:           data.Dosage,
		Frequency:        data.Frequency,
		StartDate:        data.StartDate,
		EndDate:          data.EndDate,
		RefillsRemaining: data.RefillsRemaining,
		RefillsTotal:     data.RefillsTotal,
		Status:           entity.PrescriptionStatus(data.Status),
		Pharmacy:         data.Pharmacy,
		Instructions:     data.Instructions,
		SideEffects:      data.SideEffects,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
	if data.Patient != nil {
		prescription.PatientFirstName = data.Patient.FirstName
		prescription.PatientLastName = data.Patient.LastName
	}
	if data.Doctor != nil {
		prescription.DoctorFirstName = data.Doctor.FirstName
		prescription.DoctorLastName = data.Doctor.LastName
		prescription.DoctorSpecialty = data.Doctor.Specialty
	}

	return prescription
}

func fromPrescriptionDomain(data *entity.Prescription) *model.PrescriptionModel {
	if data == nil {
		return nil
	}

	return &model.PrescriptionModel{
		ID:               data.ID,
		PatientID:        data.PatientID,
		DoctorID:         data.DoctorID,
		Medication:       data.Medication,
		Dosage:           data.Dosage,
		Frequency:        data.Frequency,
		StartDate:        data.StartDate,
		EndDate:          data.EndDate,
		RefillsRemaining: data.RefillsRemaining,
		RefillsTotal:     data.RefillsTotal,
		Status:           string(data.Status),
		Pharmacy:         data.Pharmacy,
		Instructions:     data.Instructions,
		SideEffects:      data.SideEffects,
	}
}
