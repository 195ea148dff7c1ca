package model

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionModel mirrors the 'prescriptions' table.
type PrescriptionModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	PatientID        uuid.UUID `gorm:"type:uuid;not null;index"`
	DoctorID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Medication       string    `gorm:"type:varchar(255);not null"`
	Dosage           string    `gorm:"type:varchar(100);not null"`
	Frequency        string    `gorm:"type:varchar(100);not null"`
	StartDate        string    `gorm:"type:varchar(10);not null"`
	EndDate          string    `gorm:"type:varchar(10)"`
	RefillsRemaining int       `gorm:"not null"`
	RefillsTotal     int       `gorm:"not null"`
	Status           string    `gorm:"type:varchar(20);not null;index"`
	Pharmacy         string    `gorm:"type:varchar(255)"`
	Instructions     string    `gorm:"type:text"`
	SideEffects      string    `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Patient *UserModel `gorm:"foreignKey:PatientID"`
	Doctor  *UserModel `gorm:"foreignKey:DoctorID"`
}

// TableName explicitly sets the table name for GORM.
func (PrescriptionModel) TableName() string {
	return "prescriptions"
}

// LabResultModel mirrors the 'lab_results' table.
type LabResultModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	PatientID      uuid.UUID `gorm:"type:uuid;not null;index"`
	DoctorID       uuid.UUID `gorm:"type:uuid;not null"`
	TestName       string    `gorm:"type:varchar(255);not null"`
	Category       string    `gorm:"type:varchar(100)"`
	ResultValue    string    `gorm:"type:varchar(255)"`
	ReferenceRange string    `gorm:"type:varchar(100)"`
	Unit           string    `gorm:"type:varchar(50)"`
	Status         string    `gorm:"type:varchar(20);not null"`
	Notes          string    `gorm:"type:text"`
	TestDate       string    `gorm:"type:varchar(10);not null"`
	ResultDate     string    `gorm:"type:varchar(10)"`
	CreatedAt      time.Time

	Doctor *UserModel `gorm:"foreignKey:DoctorID"`
}

// TableName explicitly sets the table name for GORM.
func (LabResultModel) TableName() string {
	return "lab_results"
}
