package middleware

import (
	"fmt"
	"strings"

	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/service"

	"github.com/labstack/echo/v4"
)

// RoleMiddleware gates routes by role.
type RoleMiddleware struct {
	audit service.AuditSink
}

// NewRoleMiddleware is the constructor for RoleMiddleware.
func NewRoleMiddleware(audit service.AuditSink) *RoleMiddleware {
	return &RoleMiddleware{audit: audit}
}

// RequireRole is a middleware factory that admits only the given roles and
// audits every denial. It must be used AFTER RequireSession.
func (m *RoleMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	allowed := entity.Roles(roles)
	required := strings.Join(allowed.ToStrings(), ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := deliverycontext.GetUser(c)
			if !ok {
				return domainerrors.ErrUnauthorized
			}

			if !allowed.Contains(user.Role) {
				userID := user.ID
				m.audit.Record(c.Request().Context(), &entity.AuditEntry{
					UserID:    &userID,
					Action:    entity.AuditActionAccessDenied,
					Details:   fmt.Sprintf("User with role '%s' attempted to access %s %s requiring: %s", user.Role, c.Request().Method, c.Path(), required),
					IPAddress: deliverycontext.GetClientIP(c),
				})

				return domainerrors.ErrForbidden.WithMessage("Access denied. Insufficient permissions.")
			}

			return next(c)
		}
	}
}
