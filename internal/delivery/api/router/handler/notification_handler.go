package handler

import (
	"log/slog"
	"net/http"

	"healthbridge/internal/delivery/api/response"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// NotificationHandlerParams holds dependencies for NotificationHandler, injected by Fx.
type NotificationHandlerParams struct {
	fx.In

	NotificationUC usecase.NotificationUsecase
	Logger         *slog.Logger
}

// NotificationHandler serves the in-app notification feed.
type NotificationHandler struct {
	notificationUC usecase.NotificationUsecase
	logger         *slog.Logger
}

// NewNotificationHandler is the constructor for NotificationHandler.
func NewNotificationHandler(params NotificationHandlerParams) *NotificationHandler {
	return &NotificationHandler{
		notificationUC: params.NotificationUC,
		logger:         params.Logger,
	}
}

// NotificationsResponse is the caller's feed
type NotificationsResponse struct {
	Notifications []*NotificationView `json:"notifications"`
	UnreadCount   int64               `json:"unread_count"`
}

// List returns the newest notifications and the unread count.
func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	feed, err := h.notificationUC.Feed(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}

	views := make([]*NotificationView, 0, len(feed.Notifications))
	for _, n := range feed.Notifications {
		views = append(views, &NotificationView{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			Link:      n.Link,
			CreatedAt: n.CreatedAt,
		})
	}

	return response.Success(c, http.StatusOK, NotificationsResponse{Notifications: views, UnreadCount: feed.UnreadCount})
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.notificationUC.MarkRead(c.Request().Context(), actor.ID, id); err != nil {
		return err
	}

	return response.Message(c, "Notification marked as read.")
}

// MarkAllRead marks every notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	if err := h.notificationUC.MarkAllRead(c.Request().Context(), actor.ID); err != nil {
		return err
	}

	return response.Message(c, "All notifications marked as read.")
}
