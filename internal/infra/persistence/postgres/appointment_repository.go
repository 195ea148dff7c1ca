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

var activeAppointmentStatuses = []string{
	string(entity.AppointmentStatusScheduled),
	string(entity.AppointmentStatusConfirmed),
}

// appointmentRepository implements repository.AppointmentRepository using GORM.
type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository is the constructor for appointmentRepository.
func NewAppointmentRepository(db *gorm.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

// Create inserts a booking. The partial unique index on (doctor_id, date, time)
// rejects a second active booking of the slot even when two transactions both
// saw it free.
func (repo *appointmentRepository) Create(ctx context.Context, appointment *entity.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}

	appointmentM := fromAppointmentDomain(appointment)
	if err := repo.db.WithContext(ctx).Omit("Patient", "Doctor").Create(appointmentM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrap(domainerrors.ErrSlotUnavailable, "slot already booked")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("appointment references an unknown user")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create appointment")
	}

	appointment.CreatedAt = appointmentM.CreatedAt
	appointment.UpdatedAt = appointmentM.UpdatedAt

	return nil
}

func (repo *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var appointmentM model.AppointmentModel
	err := repo.withParties(ctx).Where("appointments.id = ?", id).First(&appointmentM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAppointmentNotFound
		}

		return nil, errors.Wrap(err, "failed to find appointment")
	}

	return toAppointmentDomain(&appointmentM), nil
}

func (repo *appointmentRepository) FindBookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	var times []string
	err := repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).
		Where(`doctor_id = ? AND "date" = ? AND status <> ?`, doctorID, date, string(entity.AppointmentStatusCancelled)).
		Order(`"time"`).
		Pluck("time", &times).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find booked times")
	}

	return times, nil
}

func (repo *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	query := repo.withParties(ctx).Where("appointments.patient_id = ?", patientID)

	return repo.list(applyAppointmentFilter(query, filter).Order(`"date" DESC, "time" DESC`), "failed to list patient appointments")
}

func (repo *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	query := repo.withParties(ctx).Where("appointments.doctor_id = ?", doctorID)

	return repo.list(applyAppointmentFilter(query, filter).Order(`"date" ASC, "time" ASC`), "failed to list doctor appointments")
}

func (repo *appointmentRepository) ListAll(ctx context.Context, filter entity.AppointmentFilter) ([]*entity.Appointment, error) {
	query := applyAppointmentFilter(repo.withParties(ctx), filter)

	return repo.list(query.Order(`"date" DESC, "time" DESC`), "failed to list appointments")
}

func (repo *appointmentRepository) ListUpcoming(ctx context.Context, userID uuid.UUID, role entity.Role, fromDate string, limit int) ([]*entity.Appointment, error) {
	query := scopeToRole(repo.withParties(ctx), userID, role).
		Where(`appointments.status IN ? AND "date" >= ?`, activeAppointmentStatuses, fromDate).
		Order(`"date" ASC, "time" ASC`)
	if limit > 0 {
		query = query.Limit(limit)
	}

	return repo.list(query, "failed to list upcoming appointments")
}

func (repo *appointmentRepository) Stats(ctx context.Context, userID uuid.UUID, role entity.Role, today string) (*entity.AppointmentStats, error) {
	var stats entity.AppointmentStats
	err := scopeToRole(repo.db.WithContext(ctx).Model(&model.AppointmentModel{}), userID, role).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ? AND "date" >= ?) AS upcoming,
			COUNT(*) FILTER (WHERE status = ?) AS completed,
			COUNT(*) FILTER (WHERE status = ?) AS cancelled`,
			activeAppointmentStatuses, today,
			string(entity.AppointmentStatusCompleted),
			string(entity.AppointmentStatusCancelled),
		).
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute appointment stats")
	}

	return &stats, nil
}

func (repo *appointmentRepository) HasAssignment(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check assignment")
	}

	return count > 0, nil
}

// UpdateStatus is a compare-and-set on the status column, so a transition
// checked against a stale read never overwrites a concurrent change.
func (repo *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.AppointmentStatus) error {
	const msg = "failed to update appointment status"

	result := repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to)})
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return errors.Wrap(domainerrors.ErrSlotUnavailable, msg)
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to check appointment")
	}
	if count == 0 {
		return repository.ErrAppointmentNotFound
	}

	return repository.ErrAppointmentStatusChanged
}

func (repo *appointmentRepository) Update(ctx context.Context, id uuid.UUID, update *entity.AppointmentUpdate) error {
	columns := appointmentUpdateColumns(update)
	if len(columns) == 0 {
		return nil
	}

	return repo.updateColumns(ctx, id, columns, "failed to update appointment")
}

func (repo *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AppointmentModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete appointment")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAppointmentNotFound
	}

	return nil
}

func (repo *appointmentRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return errors.Wrap(domainerrors.ErrSlotUnavailable, msg)
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrAppointmentNotFound
	}

	return nil
}

func (repo *appointmentRepository) withParties(ctx context.Context) *gorm.DB {
	return repo.db.WithContext(ctx).Model(&model.AppointmentModel{}).Preload("Patient").Preload("Doctor")
}

func (repo *appointmentRepository) list(query *gorm.DB, msg string) ([]*entity.Appointment, error) {
	var appointmentsM []*model.AppointmentModel
	if err := query.Find(&appointmentsM).Error; err != nil {
		return nil, errors.Wrap(err, msg)
	}

	appointments := make([]*entity.Appointment, 0, len(appointmentsM))
	for _, appointmentM := range appointmentsM {
		appointments = append(appointments, toAppointmentDomain(appointmentM))
	}

	return appointments, nil
}

func scopeToRole(query *gorm.DB, userID uuid.UUID, role entity.Role) *gorm.DB {
	switch role {
	case entity.RolePatient:
		return query.Where("appointments.patient_id = ?", userID)
	case entity.RoleDoctor:
		return query.Where("appointments.doctor_id = ?", userID)
	case entity.RoleAdmin:
		return query
	default:
		return query.Where("1 = 0")
	}
}

func applyAppointmentFilter(query *gorm.DB, filter entity.AppointmentFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("appointments.status = ?", string(filter.Status))
	}
	if filter.Date != "" {
		query = query.Where(`"date" = ?`, filter.Date)
	}
	if filter.From != "" {
		query = query.Where(`"date" >= ?`, filter.From)
	}
	if filter.To != "" {
		query = query.Where(`"date" <= ?`, filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	return query
}

// --- Mapper Functions ---

// appointmentUpdateColumns maps each editable appointment field to its column.
func appointmentUpdateColumns(update *entity.AppointmentUpdate) map[string]any {
	columns := make(map[string]any)
	if update == nil {
		return columns
	}

	if update.Type != nil {
		columns["type"] = string(*update.Type)
	}
	setString(columns, "reason", update.Reason)
	setString(columns, "notes", update.Notes)
	setString(columns, "location", update.Location)
	if update.Duration != nil {
		columns["duration"] = *update.Duration
	}

	return columns
}

func toAppointmentDomain(data *model.AppointmentModel) *entity.Appointment {
	if data == nil {
		return nil
	}

	appointment := &entity.Appointment{
		ID:        data.ID,
		PatientID: data.PatientID,
		DoctorID:  data.DoctorID,
		Date:      data.Date,
		Time:      data.Time,
		Duration:  data.Duration,
		Type:      entity.AppointmentType(data.Type),
		Status:    entity.AppointmentStatus(data.Status),
		Reason:    data.Reason,
		Notes:     data.Notes,
		Location:  data.Location,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
	if data.Patient != nil {
		appointment.PatientFirstName = data.Patient.FirstName
		appointment.PatientLastName = data.Patient.LastName
		appointment.PatientEmail = data.Patient.Email
	}
	if data.Doctor != nil {
		appointment.DoctorFirstName = data.Doctor.FirstName
		appointment.DoctorLastName = data.Doctor.LastName
		appointment.DoctorSpecialty = data.Doctor.Specialty
	}

	return appointment
}

func fromAppointmentDomain(data *entity.Appointment) *model.AppointmentModel {
	if data == nil {
		return nil
	}

	return &model.AppointmentModel{
		ID:        data.ID,
		PatientID: data.PatientID,
		DoctorID:  data.DoctorID,
		Date:      data.Date,
		Time:      data.Time,
		Duration:  data.Duration,
		Type:      string(data.Type),
		Status:    string(data.Status),
		Reason:    data.Reason,
		Notes:     data.Notes,
		Location:  data.Location,
	}
}
