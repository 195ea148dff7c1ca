package middleware

import (
	"log/slog"

	"healthbridge/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// UseBase installs the chain shared by the portal and the notifier: panic
// recovery, then request ID (so the access log can carry it), then access log.
func UseBase(e *echo.Echo, logger *slog.Logger, cfg *config.Config) {
	e.Use(echomiddleware.Recover())
	e.Use(NewRequestIDMiddleware(logger).Process)
	e.Use(NewLoggerMiddleware(logger, cfg).Handle)
}
