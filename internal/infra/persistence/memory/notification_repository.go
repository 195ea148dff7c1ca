package memory

import (
	"context"
	"slices"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"

	"github.com/google/uuid"
)

type notificationRepository struct {
	scope scope
}

func (r *notificationRepository) Create(_ context.Context, notification *entity.Notification) error {
	return r.scope.run(func(t *tables) error {
		if notification.ID == uuid.Nil {
			notification.ID = uuid.New()
		}
		notification.CreatedAt = r.scope.now()
		t.notifications[notification.ID] = *notification

		return nil
	})
}

func (r *notificationRepository) ListByUser(_ context.Context, userID uuid.UUID, n int) ([]*entity.Notification, error) {
	var notifications []*entity.Notification
	err := r.scope.run(func(t *tables) error {
		for _, notification := range t.notifications {
			if notification.UserID == userID {
				notifications = append(notifications, &notification)
			}
		}

		return nil
	})
	slices.SortFunc(notifications, func(a, b *entity.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })

	return limit(notifications, n), err
}

func (r *notificationRepository) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.scope.run(func(t *tables) error {
		for _, notification := range t.notifications {
			if notification.UserID == userID && !notification.IsRead {
				count++
			}
		}

		return nil
	})

	return count, err
}

func (r *notificationRepository) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	return r.scope.run(func(t *tables) error {
		notification, ok := t.notifications[id]
		if !ok || notification.UserID != userID {
			return domainerrors.ErrNotificationNotFound
		}
		notification.IsRead = true
		t.notifications[id] = notification

		return nil
	})
}

func (r *notificationRepository) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	return r.scope.run(func(t *tables) error {
		for id, notification := range t.notifications {
			if notification.UserID == userID && !notification.IsRead {
				notification.IsRead = true
				t.notifications[id] = notification
			}
		}

		return nil
	})
}
