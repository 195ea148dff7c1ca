// Package worker serves the notifier's Pub/Sub push endpoint.
package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"healthbridge/config"
	"healthbridge/internal/delivery"
	"healthbridge/internal/delivery/middleware"
	"healthbridge/internal/delivery/worker/handler"
	"healthbridge/internal/domain/lifecycle"
	"healthbridge/internal/errors"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

// PushPath is where Pub/Sub push subscriptions deliver portal events.
const PushPath = "/push"

// pushBodyLimit covers the largest portal event envelope with room to spare.
const pushBodyLimit = "256K"

// ServerParams holds dependencies for the notifier server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	PushHandler *handler.PushHandler
}

type notifierServer struct {
	addr   string
	logger *slog.Logger
	echo   *echo.Echo
}

// NewServer builds the notifier HTTP server and registers its shutdown hook.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	middleware.UseBase(e, params.Logger, params.Cfg)
	e.Use(echomiddleware.BodyLimit(pushBodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "notifier"})
	})
	e.POST(PushPath, params.PushHandler.HandlePush)

	srv := &notifierServer{
		addr:   net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		logger: params.Logger,
		echo:   e,
	}
	params.Lc.Append(fx.Hook{OnStop: srv.shutdown})

	return srv, nil
}

// Serve blocks until the server is shut down.
func (s *notifierServer) Serve(_ context.Context) error {
	s.logger.Info("Notifier listening for push deliveries",
		slog.String("host_port", s.addr),
		slog.String("path", PushPath))

	err := s.echo.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return errors.WithStack(err)
}

func (s *notifierServer) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Notifier draining push deliveries")

	return errors.WithStack(s.echo.Shutdown(ctx))
}
