package usecase

import (
	"context"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"github.com/google/uuid"
)

// NotificationFeed is a page of a user's notifications with the unread total.
type NotificationFeed struct {
	Notifications []*entity.Notification
	UnreadCount   int64
}

// NotificationUsecase reads and acknowledges in-app notifications.
type NotificationUsecase interface {
	Feed(ctx context.Context, userID uuid.UUID) (*NotificationFeed, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// EventUsecase handles portal events delivered to the notifier worker.
type EventUsecase interface {
	Handle(ctx context.Context, event *service.PortalEvent) error
}

// ErrInvalidEvent marks an event the worker can never process. Pub/Sub should
// not redeliver it.
var ErrInvalidEvent = errors.New("invalid portal event")
