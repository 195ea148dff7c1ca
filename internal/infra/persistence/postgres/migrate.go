package postgres

import (
	"context"

	"healthbridge/internal/errors"
	"healthbridge/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// The booking invariant: one active booking per doctor slot. Cancelled rows are
// excluded so a cancelled slot can be booked again.
const createSlotIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_doctor_slot_active
ON appointments (doctor_id, "date", "time")
WHERE status <> 'cancelled'`

// Migrate creates or updates every portal table and index.
func Migrate(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).AutoMigrate(
		&model.UserModel{},
		&model.AppointmentModel{},
		&model.PrescriptionModel{},
		&model.LabResultModel{},
		&model.NotificationModel{},
		&model.AuditLogModel{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to auto-migrate tables")
	}

	if err := db.WithContext(ctx).Exec(createSlotIndexSQL).Error; err != nil {
		return errors.Wrap(err, "failed to create appointment slot index")
	}

	return nil
}
