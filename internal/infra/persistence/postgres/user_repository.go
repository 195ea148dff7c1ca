package postgres

import (
	"context"
	"strings"
	"time"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain.UserRepository interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their unique ID.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&userM).Error; err != nil {
		// If the error is 'record not found', return a domain-specific error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by id")
	}

	return toUserDomain(&userM), nil
}

// FindByEmail retrieves a single user by their lowercased email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where("email = ?", entity.NormalizeEmail(email)).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	return toUserDomain(&userM), nil
}

func (repo *userRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ?", token, now).
		First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by reset token")
	}

	return toUserDomain(&userM), nil
}

// Create persists a new user entity to the database.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = entity.NormalizeEmail(user.Email)

	userM := fromUserDomain(user)
	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		// Convert PostgreSQL errors to domain errors
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required user information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

func (repo *userRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update *entity.UserProfileUpdate) error {
	columns := profileUpdateColumns(update)
	if len(columns) == 0 {
		return nil
	}

	return repo.updateColumns(ctx, id, columns, "failed to update user profile")
}

func (repo *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"password_hash":          passwordHash,
		"password_reset_token":   nil,
		"password_reset_expires": nil,
	}, "failed to update password")
}

func (repo *userRepository) RedeemResetToken(ctx context.Context, id uuid.UUID, token string, now time.Time, passwordHash string) error {
	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ? AND password_reset_token = ? AND password_reset_expires > ?", id, token, now).
		Updates(map[string]any{
			"password_hash":          passwordHash,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to redeem reset token")
	}
	if result.RowsAffected == 0 {
		return repository.ErrResetTokenRedeemed
	}

	return nil
}

func (repo *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"password_reset_token":   token,
		"password_reset_expires": expires,
	}, "failed to set reset token")
}

func (repo *userRepository) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return repo.updateColumns(ctx, id, map[string]any{"two_factor_secret": secret}, "failed to set two-factor secret")
}

func (repo *userRepository) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return repo.updateColumns(ctx, id, map[string]any{"two_factor_enabled": true}, "failed to enable two-factor")
}

func (repo *userRepository) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
	}, "failed to disable two-factor")
}

func (repo *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return repo.updateColumns(ctx, id, map[string]any{"is_active": active}, "failed to set active flag")
}

func (repo *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.updateColumns(ctx, id, map[string]any{"last_login": at}, "failed to update last login")
}

func (repo *userRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

func (repo *userRepository) ListActiveDoctors(ctx context.Context) ([]*entity.User, error) {
	var users []*model.UserModel
	err := repo.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", entity.RoleDoctor.String(), true).
		Order("last_name, first_name").
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list doctors")
	}

	return toUserDomains(users), nil
}

func (repo *userRepository) List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	query := repo.db.WithContext(ctx).Model(&model.UserModel{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role.String())
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?", like, like, like)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var users []*model.UserModel
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	return toUserDomains(users), nil
}

func (repo *userRepository) Stats(ctx context.Context) (*entity.UserStats, error) {
	var rows []struct {
		Role     string
		IsActive bool
		Count    int64
	}
	err := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Select("role, is_active, COUNT(*) AS count").
		Group("role, is_active").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count users")
	}

	stats := &entity.UserStats{}
	for _, row := range rows {
		stats.Total += row.Count
		if row.IsActive {
			stats.Active += row.Count
		}
		switch entity.Role(row.Role) {
		case entity.RoleAdmin:
			stats.Admins += row.Count
		case entity.RoleDoctor:
			stats.Doctors += row.Count
		case entity.RolePatient:
			stats.Patients += row.Count
		}
	}

	return stats, nil
}

type patientSummaryRow struct {
	model.UserModel  `gorm:"embedded"`
	AppointmentCount int64
	LastVisit        *string
}

const listPatientsSQL = `
SELECT u.*, COUNT(a.id) AS appointment_count, MAX(a."date") AS last_visit
FROM users u
LEFT JOIN appointments a ON a.patient_id = u.id
WHERE u.role = ?
GROUP BY u.id
ORDER BY u.last_name, u.first_name`

const listPatientsForDoctorSQL = `
SELECT u.*, COUNT(a.id) AS appointment_count, MAX(a."date") AS last_visit
FROM users u
JOIN appointments a ON a.patient_id = u.id AND a.doctor_id = ?
WHERE u.role = ? AND u.is_active = TRUE
GROUP BY u.id
ORDER BY u.last_name, u.first_name`

func (repo *userRepository) ListPatients(ctx context.Context) ([]*entity.PatientSummary, error) {
	var rows []patientSummaryRow
	if err := repo.db.WithContext(ctx).Raw(listPatientsSQL, entity.RolePatient.String()).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list patients")
	}

	return toPatientSummaries(rows), nil
}

func (repo *userRepository) ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*entity.PatientSummary, error) {
	var rows []patientSummaryRow
	err := repo.db.WithContext(ctx).
		Raw(listPatientsForDoctorSQL, doctorID, entity.RolePatient.String()).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patients for doctor")
	}

	return toPatientSummaries(rows), nil
}

func (repo *userRepository) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("password_reset_expires < ?", now).
		Updates(map[string]any{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to purge reset tokens")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---
// These helpers convert between domain entities and persistence models.

// profileUpdateColumns maps each editable profile field to its column.
func profileUpdateColumns(update *entity.UserProfileUpdate) map[string]any {
	columns := make(map[string]any)
	if update == nil {
		return columns
	}

	setString(columns, "first_name", update.FirstName)
	setString(columns, "last_name", update.LastName)
	setString(columns, "phone", update.Phone)
	setString(columns, "date_of_birth", update.DateOfBirth)
	setString(columns, "gender", update.Gender)
	setString(columns, "address", update.Address)
	setString(columns, "specialty", update.Specialty)
	setString(columns, "license_number", update.LicenseNumber)
	setString(columns, "insurance_id", update.InsuranceID)
	setString(columns, "emergency_contact", update.EmergencyContact)
	setString(columns, "emergency_phone", update.EmergencyPhone)

	return columns
}

func setString(columns map[string]any, column string, value *string) {
	if value != nil {
		columns[column] = *value
	}
}

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	return &entity.User{
		ID:                   data.ID,
		Email:                data.Email,
		PasswordHash:         data.PasswordHash,
		FirstName:            data.FirstName,
		LastName:             data.LastName,
		Role:                 entity.Role(data.Role),
		Phone:                data.Phone,
		DateOfBirth:          data.DateOfBirth,
		Gender:               data.Gender,
		Address:              data.Address,
		Specialty:            data.Specialty,
		LicenseNumber:        data.LicenseNumber,
		InsuranceID:          data.InsuranceID,
		EmergencyContact:     data.EmergencyContact,
		EmergencyPhone:       data.EmergencyPhone,
		TwoFactorSecret:      derefString(data.TwoFactorSecret),
		TwoFactorEnabled:     data.TwoFactorEnabled,
		PasswordResetToken:   derefString(data.PasswordResetToken),
		PasswordResetExpires: data.PasswordResetExpires,
		IsActive:             data.IsActive,
		LastLogin:            data.LastLogin,
		CreatedAt:            data.CreatedAt,
		UpdatedAt:            data.UpdatedAt,
	}
}

// fromUserDomain converts a domain User entity to a GORM UserModel for persistence.
func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	return &model.UserModel{
		ID:                   data.ID,
		Email:                data.Email,
		PasswordHash:         data.PasswordHash,
		FirstName:            data.FirstName,
		LastName:             data.LastName,
		Role:                 data.Role.String(),
		Phone:                data.Phone,
		DateOfBirth:          data.DateOfBirth,
		Gender:               data.Gender,
		Address:              data.Address,
		Specialty:            data.Specialty,
		LicenseNumber:        data.LicenseNumber,
		InsuranceID:          data.InsuranceID,
		EmergencyContact:     data.EmergencyContact,
		EmergencyPhone:       data.EmergencyPhone,
		TwoFactorSecret:      nilIfEmpty(data.TwoFactorSecret),
		TwoFactorEnabled:     data.TwoFactorEnabled,
		PasswordResetToken:   nilIfEmpty(data.PasswordResetToken),
		PasswordResetExpires: data.PasswordResetExpires,
		IsActive:             data.IsActive,
		LastLogin:            data.LastLogin,
	}
}

func toUserDomains(data []*model.UserModel) []*entity.User {
	users := make([]*entity.User, 0, len(data))
	for _, userM := range data {
		users = append(users, toUserDomain(userM))
	}

	return users
}

func toPatientSummaries(rows []patientSummaryRow) []*entity.PatientSummary {
	summaries := make([]*entity.PatientSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, &entity.PatientSummary{
			Patient:          toUserDomain(&rows[i].UserModel),
			AppointmentCount: rows[i].AppointmentCount,
			LastVisit:        derefString(rows[i].LastVisit),
		})
	}

	return summaries
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
