package entity

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType groups in-app notifications by origin.
type NotificationType string

const (
	NotificationTypeAppointment   NotificationType = "appointment"
	NotificationTypePrescription  NotificationType = "prescription"
	NotificationTypeRefillRequest NotificationType = "refill_request"
	NotificationTypeLabResult     NotificationType = "lab_result"
)

// Notification is an in-app message shown on a user's dashboard.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Title     string
	Message   string
	IsRead    bool
	Link      string
	CreatedAt time.Time
}
