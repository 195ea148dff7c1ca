// Package persistence selects the storage backend and exposes its repositories
// to the dependency graph.
package persistence

import (
	"log/slog"

	"healthbridge/config"
	"healthbridge/internal/domain/constants"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/errors"
	"healthbridge/internal/infra/persistence/memory"
	"healthbridge/internal/infra/persistence/postgres"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
}

// Result carries one repository per aggregate plus the transaction manager,
// all bound to the same backend.
type Result struct {
	fx.Out

	TxManager     repository.TransactionManager
	Users         repository.UserRepository
	Appointments  repository.AppointmentRepository
	Prescriptions repository.PrescriptionRepository
	LabResults    repository.LabResultRepository
	Notifications repository.NotificationRepository
	Audit         repository.AuditRepository
}

// New opens the configured backend.
func New(params Params) (Result, error) {
	driver := constants.StorePostgres
	if params.Config.Storage != nil && params.Config.Storage.Driver != "" {
		driver = params.Config.Storage.Driver
	}

	switch driver {
	case constants.StorePostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lifecycle,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return Result{}, err
		}
		params.Logger.Info("Using PostgreSQL storage")

		return newResult(postgres.NewTransactionManager(db), postgres.NewRepositoryFactory(db)), nil
	case constants.StoreMemory:
		store := memory.NewStore()
		params.Logger.Warn("Using in-memory storage, records are lost on restart")

		return newResult(store.TransactionManager(), store.Repositories()), nil
	default:
		return Result{}, errors.Errorf("unknown storage driver %q", driver)
	}
}

func newResult(tx repository.TransactionManager, repos repository.RepositoryFactory) Result {
	return Result{
		TxManager:     tx,
		Users:         repos.NewUserRepository(),
		Appointments:  repos.NewAppointmentRepository(),
		Prescriptions: repos.NewPrescriptionRepository(),
		LabResults:    repos.NewLabResultRepository(),
		Notifications: repos.NewNotificationRepository(),
		Audit:         repos.NewAuditRepository(),
	}
}
