package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"healthbridge/config"
	"healthbridge/internal/domain/lifecycle"
	"healthbridge/internal/errors"

	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	poolSampleInterval  = 5 * time.Second
	poolSlowWaitPerTick = 50 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New opens the portal database through go-lib's DBConn (primary plus any
// configured replicas). The pool is pinged on start, the schema is migrated
// when storage.autoMigrate is set, and pool contention is sampled until stop.
func New(params Params) (*gorm.DB, error) {
	opened, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open portal database")
	}

	// Multi-step writes (booking, refills) run inside txManager.Execute, so
	// single statements do not need gorm's implicit transaction.
	db := opened.Session(&gorm.Session{
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(params.Logger, params.Config),
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach the underlying sql.DB")
	}

	autoMigrate := params.Config.Storage != nil && params.Config.Storage.AutoMigrate
	watcher := &poolWatcher{logger: params.Logger, slowWait: poolSlowWaitPerTick}
	sampling, stopSampling := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "portal database is unreachable")
			}

			if autoMigrate {
				if err := Migrate(ctx, db); err != nil {
					return err
				}
				params.Logger.Info("Portal schema is up to date")
			}

			go watcher.run(sampling, sqlDB, poolSampleInterval)

			return nil
		},
		OnStop: func(_ context.Context) error {
			stopSampling()

			return errors.WithStack(sqlDB.Close())
		},
	})

	return db, nil
}

// poolWatcher reports connection pool waits between two samples.
type poolWatcher struct {
	logger   *slog.Logger
	slowWait time.Duration
}

func (w *poolWatcher) run(ctx context.Context, sqlDB *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := sqlDB.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := sqlDB.Stats()
			w.observe(ctx, last, current)
			last = current
		}
	}
}

// observe logs nothing when no request waited for a connection since the
// previous sample. Waits above slowWait are warnings.
func (w *poolWatcher) observe(ctx context.Context, last, current sql.DBStats) {
	waits := current.WaitCount - last.WaitCount
	if waits <= 0 {
		return
	}
	waited := current.WaitDuration - last.WaitDuration

	level := slog.LevelDebug
	msg := "Portal database pool wait observed"
	if waited >= w.slowWait {
		level = slog.LevelWarn
		msg = "Portal database pool is saturated"
	}

	w.logger.LogAttrs(ctx, level, msg,
		slog.Int64("waits", waits),
		slog.Duration("waited", waited),
		slog.Duration("avg_wait", waited/time.Duration(waits)),
		slog.Int("open", current.OpenConnections),
		slog.Int("in_use", current.InUse),
		slog.Int("idle", current.Idle),
		slog.Int("max_open", current.MaxOpenConnections),
	)
}
