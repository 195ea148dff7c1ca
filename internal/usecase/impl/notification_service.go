package impl

import (
	"context"
	"log/slog"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const feedLimit = 50

// notificationService implements the NotificationUsecase interface.
type notificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

// NotificationServiceParams holds dependencies for NotificationService, injected by Fx.
type NotificationServiceParams struct {
	fx.In

	NotificationRepo repository.NotificationRepository
	Logger           *slog.Logger
}

// NewNotificationService is the constructor for notificationService.
func NewNotificationService(params NotificationServiceParams) usecase.NotificationUsecase {
	return &notificationService{repo: params.NotificationRepo, logger: params.Logger}
}

func (srv *notificationService) Feed(ctx context.Context, userID uuid.UUID) (*usecase.NotificationFeed, error) {
	notifications, err := srv.repo.ListByUser(ctx, userID, feedLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	unread, err := srv.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count unread notifications")
	}
	if notifications == nil {
		notifications = []*entity.Notification{}
	}

	return &usecase.NotificationFeed{Notifications: notifications, UnreadCount: unread}, nil
}

func (srv *notificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	err := srv.repo.MarkRead(ctx, id, userID)
	if errors.Is(err, domainerrors.ErrNotificationNotFound) {
		return domainerrors.ErrNotificationNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to mark notification read")
	}

	return nil
}

func (srv *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := srv.repo.MarkAllRead(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to mark notifications read")
	}

	return nil
}
