package middleware

import (
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// SessionMiddlewareParams holds dependencies for SessionMiddleware, injected by Fx.
type SessionMiddlewareParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Cookie *SessionCookie
}

// SessionMiddleware resolves the session cookie into a session and its user.
type SessionMiddleware struct {
	authUC usecase.AuthUsecase
	cookie *SessionCookie
}

// NewSessionMiddleware is the constructor for SessionMiddleware.
func NewSessionMiddleware(params SessionMiddlewareParams) *SessionMiddleware {
	return &SessionMiddleware{authUC: params.AuthUC, cookie: params.Cookie}
}

// RequireSession rejects requests without a live session. It enforces the idle
// timeout and refreshes the last activity on every request. A session that was
// torn down also loses its cookie.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := m.cookie.Read(c)
		if sessionID == "" {
			return domainerrors.ErrUnauthorized
		}

		state, err := m.authUC.Authenticate(c.Request().Context(), sessionID, deliverycontext.GetClientIP(c))
		if err != nil {
			if errors.Is(err, domainerrors.ErrSessionExpired) ||
				errors.Is(err, domainerrors.ErrUnauthorized) ||
				errors.Is(err, domainerrors.ErrAccountDeactivated) {
				m.cookie.Clear(c)
			}

			return err
		}

		deliverycontext.SetSession(c, state.Session, state.User)

		return next(c)
	}
}

// RequireFullyVerified admits only sessions that completed every login step.
// It must be used AFTER RequireSession.
func (m *SessionMiddleware) RequireFullyVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch deliverycontext.GetSession(c).State() {
		case entity.AuthStateFullyVerified:
			return next(c)
		case entity.AuthStatePasswordVerified:
			return domainerrors.ErrTwoFactorRequired
		case entity.AuthStateAnonymous:
			return domainerrors.ErrUnauthorized
		default:
			return domainerrors.ErrUnauthorized
		}
	}
}
