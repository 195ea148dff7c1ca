package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. IDs are generated by the application.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	FirstName    string    `gorm:"type:varchar(100);not null"`
	LastName     string    `gorm:"type:varchar(100);not null"`
	Role         string    `gorm:"type:varchar(20);not null;index"`

	Phone       string `gorm:"type:varchar(30)"`
	DateOfBirth string `gorm:"type:varchar(10)"`
	Gender      string `gorm:"type:varchar(20)"`
	Address     string `gorm:"type:text"`

	Specialty     string `gorm:"type:varchar(100)"`
	LicenseNumber string `gorm:"type:varchar(100)"`

	InsuranceID      string `gorm:"type:varchar(100)"`
	EmergencyContact string `gorm:"type:varchar(200)"`
	EmergencyPhone   string `gorm:"type:varchar(30)"`

	TwoFactorSecret  *string `gorm:"type:varchar(64)"`
	TwoFactorEnabled bool    `gorm:"not null"`

	PasswordResetToken   *string `gorm:"type:varchar(64);index"`
	PasswordResetExpires *time.Time

	// No column default so an explicit false survives Create.
	IsActive  bool `gorm:"not null"`
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
