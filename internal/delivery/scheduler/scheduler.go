// Package scheduler runs periodic housekeeping jobs inside the portal process.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"healthbridge/config"
	"healthbridge/internal/delivery"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

type cronScheduler struct {
	cfg         *config.SchedulerConfig
	cron        *cron.Cron
	maintenance usecase.MaintenanceUsecase
	logger      *slog.Logger
	now         func() time.Time
}

// SchedulerParams holds dependencies for the maintenance scheduler.
type SchedulerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Maintenance usecase.MaintenanceUsecase
	Logger      *slog.Logger
}

// NewScheduler registers the maintenance jobs on a cron runner.
func NewScheduler(params SchedulerParams) (delivery.Delivery, error) {
	srv, err := newCronScheduler(params.Cfg.Scheduler, params.Maintenance, params.Logger, time.Now)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

func newCronScheduler(
	cfg *config.SchedulerConfig,
	maintenance usecase.MaintenanceUsecase,
	logger *slog.Logger,
	now func() time.Time,
) (*cronScheduler, error) {
	if cfg == nil {
		cfg = &config.SchedulerConfig{}
	}

	cronLogger := &slogCronLogger{logger: logger.With(slog.String("component", "scheduler"))}
	srv := &cronScheduler{
		cfg: cfg,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		maintenance: maintenance,
		logger:      logger,
		now:         now,
	}

	if _, err := srv.cron.AddFunc(cfg.ResetTokenPurgeSpec, srv.purgeResetTokens); err != nil {
		return nil, errors.Wrapf(err, "invalid reset token purge spec %q", cfg.ResetTokenPurgeSpec)
	}
	if _, err := srv.cron.AddFunc(cfg.RateLimitPruneSpec, srv.pruneVolatileState); err != nil {
		return nil, errors.Wrapf(err, "invalid rate limit prune spec %q", cfg.RateLimitPruneSpec)
	}

	return srv, nil
}

// Serve blocks running the cron loop until stopped. A disabled scheduler
// returns immediately.
func (s *cronScheduler) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("Maintenance scheduler disabled")

		return nil
	}

	s.logger.Info("Starting maintenance scheduler",
		slog.String("resetTokenPurge", s.cfg.ResetTokenPurgeSpec),
		slog.String("rateLimitPrune", s.cfg.RateLimitPruneSpec),
	)
	s.cron.Run()

	return nil
}

func (s *cronScheduler) stop(ctx context.Context) error {
	s.logger.Info("Stopping maintenance scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (s *cronScheduler) purgeResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.maintenance.PurgeExpiredResetTokens(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to purge expired reset tokens", slog.Any("error", err))

		return
	}
	if purged > 0 {
		s.logger.Info("Purged expired reset tokens", slog.Int64("count", purged))
	}
}

func (s *cronScheduler) pruneVolatileState() {
	if pruned := s.maintenance.PruneVolatileState(s.now()); pruned > 0 {
		s.logger.Debug("Pruned expired rate limit and session entries", slog.Int("count", pruned))
	}
}

// slogCronLogger adapts slog to the cron.Logger interface.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
