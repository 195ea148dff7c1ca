package handler

import (
	"log/slog"
	"net/http"

	"healthbridge/internal/delivery/api/response"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AdminHandlerParams holds dependencies for AdminHandler, injected by Fx.
type AdminHandlerParams struct {
	fx.In

	AdminUC usecase.AdminUsecase
	Logger  *slog.Logger
}

// AdminHandler serves user administration and the audit log.
type AdminHandler struct {
	adminUC usecase.AdminUsecase
	logger  *slog.Logger
}

// NewAdminHandler is the constructor for AdminHandler.
func NewAdminHandler(params AdminHandlerParams) *AdminHandler {
	return &AdminHandler{
		adminUC: params.AdminUC,
		logger:  params.Logger,
	}
}

// ListUsersQuery represents the filters of the user listing
type ListUsersQuery struct {
	Role   string `query:"role" json:"role" validate:"omitempty,oneof=admin doctor patient"`
	Active string `query:"active" json:"active" validate:"omitempty,oneof=true false"`
	Search string `query:"search" json:"search" validate:"max=100"`
	Limit  int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
}

// AuditLogQuery represents the paging of the audit log
type AuditLogQuery struct {
	Limit int `query:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
}

// UsersResponse wraps a user list
type UsersResponse struct {
	Users []*UserView `json:"users"`
}

// AuditLogResponse wraps audit entries, newest first
type AuditLogResponse struct {
	Entries []*AuditEntryView `json:"entries"`
}

// ListUsers returns users matching the filters.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	var query ListUsersQuery
	if err := bind(c, &query); err != nil {
		return err
	}

	filter := entity.UserFilter{
		Role:   entity.Role(query.Role),
		Search: query.Search,
		Limit:  query.Limit,
	}
	if query.Active != "" {
		active := query.Active == "true"
		filter.Active = &active
	}

	users, err := h.adminUC.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, UsersResponse{Users: newUserViews(users)})
}

// Stats returns user counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.adminUC.Stats(c.Request().Context())
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, stats)
}

// ToggleActive activates or deactivates a user.
func (h *AdminHandler) ToggleActive(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.adminUC.ToggleActive(c.Request().Context(), actor, userID, deliverycontext.GetClientIP(c))
	if err != nil {
		return err
	}

	message := "User deactivated."
	if user.IsActive {
		message = "User activated."
	}

	return response.Success(c, http.StatusOK, UserResponse{Message: message, User: newUserView(user)})
}

// AuditLog returns the newest audit entries.
func (h *AdminHandler) AuditLog(c echo.Context) error {
	var query AuditLogQuery
	if err := bind(c, &query); err != nil {
		return err
	}

	entries, err := h.adminUC.AuditLog(c.Request().Context(), query.Limit)
	if err != nil {
		return err
	}

	views := make([]*AuditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, &AuditEntryView{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			Details:    e.Details,
			IPAddress:  e.IPAddress,
			Email:      e.UserEmail,
			FirstName:  e.UserFirstName,
			LastName:   e.UserLastName,
			CreatedAt:  e.CreatedAt,
		})
	}

	return response.Success(c, http.StatusOK, AuditLogResponse{Entries: views})
}
