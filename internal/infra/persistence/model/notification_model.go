package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationModel mirrors the 'notifications' table.
type NotificationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Type      string    `gorm:"type:varchar(30);not null"`
	Title     string    `gorm:"type:varchar(255);not null"`
	Message   string    `gorm:"type:text;not null"`
	IsRead    bool      `gorm:"not null"`
	Link      string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (NotificationModel) TableName() string {
	return "notifications"
}

// AuditLogModel mirrors the append-only 'audit_log' table.
type AuditLogModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	UserID     *uuid.UUID `gorm:"type:uuid;index"`
	Action     string     `gorm:"type:varchar(50);not null;index"`
	Resource   string     `gorm:"type:varchar(50)"`
	ResourceID *uuid.UUID `gorm:"type:uuid"`
	Details    string     `gorm:"type:text"`
	IPAddress  string     `gorm:"type:varchar(64)"`
	CreatedAt  time.Time  `gorm:"index"`

	User *UserModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (AuditLogModel) TableName() string {
	return "audit_log"
}
