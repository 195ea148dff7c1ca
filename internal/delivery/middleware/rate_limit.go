package middleware

import (
	"fmt"
	"log/slog"

	"healthbridge/config"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Rate limit key spaces.
const (
	RateLimitScopeLogin     = "login"
	RateLimitScopeTwoFactor = "2fa"
)

// RateLimitMiddlewareParams holds dependencies for RateLimitMiddleware, injected by Fx.
type RateLimitMiddlewareParams struct {
	fx.In

	Limiter service.RateLimiter
	Audit   service.AuditSink
	Config  *config.Config
	Logger  *slog.Logger
}

// RateLimitMiddleware throttles credential attempts per client address.
type RateLimitMiddleware struct {
	limiter service.RateLimiter
	audit   service.AuditSink
	enabled bool
	logger  *slog.Logger
}

// NewRateLimitMiddleware is the constructor for RateLimitMiddleware.
func NewRateLimitMiddleware(params RateLimitMiddlewareParams) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: params.Limiter,
		audit:   params.Audit,
		enabled: params.Config.RateLimit != nil && params.Config.RateLimit.Enabled,
		logger:  params.Logger,
	}
}

// Limit is a middleware factory counting attempts under "<scope>:<client ip>".
// When rate limiting is disabled the middleware passes every request through.
// A limiter failure lets the request through and is logged.
func (m *RateLimitMiddleware) Limit(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !m.enabled {
			return next
		}

		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ip := deliverycontext.GetClientIP(c)

			allowed, err := m.limiter.CheckAndRecord(ctx, scope+":"+ip)
			if err != nil {
				deliverycontext.GetLoggerOrDefault(ctx, m.logger).Error("Rate limiter unavailable",
					slog.String("scope", scope),
					slog.Any("error", err))

				return next(c)
			}

			if !allowed {
				m.audit.Record(ctx, &entity.AuditEntry{
					Action:    entity.AuditActionRateLimitHit,
					Details:   fmt.Sprintf("IP %s exceeded %s rate limit", ip, scope),
					IPAddress: ip,
				})

				return domainerrors.ErrTooManyRequests
			}

			return next(c)
		}
	}
}
