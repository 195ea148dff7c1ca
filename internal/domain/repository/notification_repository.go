// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// NotificationRepository defines the interface for in-app notification persistence.
type NotificationRepository interface {
	// Create persists a new notification.
	Create(ctx context.Context, notification *entity.Notification) error

	// ListByUser returns the newest notifications for userID.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.Notification, error)

	// CountUnread counts unread notifications for userID.
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)

	// MarkRead marks one notification read when it belongs to userID.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	// MarkAllRead marks every notification of userID read.
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}
