package postgres

import (
	"context"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// notificationRepository implements the domain.NotificationRepository interface using GORM.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

// Create persists a new notification
func (repo *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	notificationM := &model.NotificationModel{
		ID:      notification.ID,
		UserID:  notification.UserID,
		Type:    string(notification.Type),
		Title:   notification.Title,
		Message: notification.Message,
		IsRead:  notification.IsRead,
		Link:    notification.Link,
	}
	if err := repo.db.WithContext(ctx).Create(notificationM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create notification")
	}
	notification.CreatedAt = notificationM.CreatedAt

	return nil
}

// ListByUser returns the newest notifications for a user
func (repo *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.Notification, error) {
	query := repo.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var notificationsM []*model.NotificationModel
	if err := query.Find(&notificationsM).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}

	notifications := make([]*entity.Notification, 0, len(notificationsM))
	for _, m := range notificationsM {
		notifications = append(notifications, &entity.Notification{
			ID:        m.ID,
			UserID:    m.UserID,
			Type:      entity.NotificationType(m.Type),
			Title:     m.Title,
			Message:   m.Message,
			IsRead:    m.IsRead,
			Link:      m.Link,
			CreatedAt: m.CreatedAt,
		})
	}

	return notifications, nil
}

// CountUnread counts a user's unread notifications
func (repo *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}

	return count, nil
}

// MarkRead marks one of the user's notifications as read
func (repo *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	result := repo.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to mark notification read")
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotificationNotFound
	}

	return nil
}

// MarkAllRead marks all of the user's notifications as read
func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	err := repo.db.WithContext(ctx).Model(&model.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to mark notifications read")
	}

	return nil
}
