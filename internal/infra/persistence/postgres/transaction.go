// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"

	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"

	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db *gorm.DB
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds a specific GORM transaction object and uses it to create
// repository instances that are bound to that single transaction.
type gormRepositoryFactory struct {
	tx *gorm.DB // In GORM, a transaction object is also a *gorm.DB
}

func (f *gormRepositoryFactory) NewUserRepository() repository.UserRepository {
	return NewUserRepository(f.tx)
}

func (f *gormRepositoryFactory) NewAppointmentRepository() repository.AppointmentRepository {
	return NewAppointmentRepository(f.tx)
}

func (f *gormRepositoryFactory) NewPrescriptionRepository() repository.PrescriptionRepository {
	return NewPrescriptionRepository(f.tx)
}

func (f *gormRepositoryFactory) NewLabResultRepository() repository.LabResultRepository {
	return NewLabResultRepository(f.tx)
}

func (f *gormRepositoryFactory) NewNotificationRepository() repository.NotificationRepository {
	return NewNotificationRepository(f.tx)
}

func (f *gormRepositoryFactory) NewAuditRepository() repository.AuditRepository {
	return NewAuditRepository(f.tx)
}

// NewTransactionManager is the constructor for gormTransactionManager.
func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &gormTransactionManager{db: db}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	// Roll back on panic, then re-panic so the recover middleware reports it.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&gormRepositoryFactory{tx: tx}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			// Keep the business error as the cause so callers can still match it.
			return errors.Wrapf(err, "transaction rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrap(err, "commit rejected by unique constraint")
		}

		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// NewRepositoryFactory returns a factory whose repositories run outside any
// explicit transaction.
func NewRepositoryFactory(db *gorm.DB) repository.RepositoryFactory {
	return &gormRepositoryFactory{tx: db}
}
