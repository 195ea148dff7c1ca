package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentModel mirrors the 'appointments' table. Date and Time are stored as
// fixed-width text (YYYY-MM-DD, HH:MM) so they sort lexically.
//
// The partial unique index idx_appointments_doctor_slot_active on
// (doctor_id, date, time) WHERE status <> 'cancelled' is created by Migrate.
type AppointmentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;index"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;index:idx_appointments_doctor_date"`
	Date      string    `gorm:"type:varchar(10);not null;index:idx_appointments_doctor_date"`
	Time      string    `gorm:"type:varchar(5);not null"`
	Duration  int       `gorm:"not null"`
	Type      string    `gorm:"type:varchar(30);not null"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	Reason    string    `gorm:"type:text"`
	Notes     string    `gorm:"type:text"`
	Location  string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Patient *UserModel `gorm:"foreignKey:PatientID"`
	Doctor  *UserModel `gorm:"foreignKey:DoctorID"`
}

// TableName explicitly sets the table name for GORM.
func (AppointmentModel) TableName() string {
	return "appointments"
}
