package main

import (
	"context"
	"log/slog"
	"os"

	"healthbridge/config"
	"healthbridge/internal/delivery"
	"healthbridge/internal/delivery/api"
	"healthbridge/internal/delivery/api/router/handler"
	"healthbridge/internal/delivery/middleware"
	"healthbridge/internal/delivery/scheduler"
	"healthbridge/internal/domain/policy"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/infra/audit"
	"healthbridge/internal/infra/auth"
	logs "healthbridge/internal/infra/log"
	"healthbridge/internal/infra/persistence"
	"healthbridge/internal/infra/pubsub"
	"healthbridge/internal/infra/qrcode"
	"healthbridge/internal/infra/ratelimit"
	"healthbridge/internal/infra/redis"
	"healthbridge/internal/infra/session"
	"healthbridge/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		persistence.New,
		redis.New,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			session.New,
			ratelimit.New,
			audit.NewSink,
			auth.NewBcryptHasher,
			auth.NewTOTPService,
			auth.NewPasswordPolicy,
			qrcode.NewQRCodeServiceFromConfig,
			pubsub.NewEventPublisher,
			fx.Annotate(
				policy.NewAccessPolicy,
				fx.From(new(repository.AppointmentRepository)),
			),
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewAppointmentService,
			impl.NewPatientService,
			impl.NewPrescriptionService,
			impl.NewNotificationService,
			impl.NewAdminService,
			impl.NewMaintenanceService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewSessionCookie,
			middleware.NewSessionMiddleware,
			middleware.NewRoleMiddleware,
			middleware.NewRateLimitMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewAppointmentHandler,
			handler.NewPatientHandler,
			handler.NewPrescriptionHandler,
			handler.NewNotificationHandler,
			handler.NewAdminHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				scheduler.NewScheduler,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
