package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/policy"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultAuditLogLimit = 100
	maxAuditLogLimit     = 500
	defaultUserListLimit = 200
)

// adminService implements the AdminUsecase interface.
type adminService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	audit     service.AuditSink
	logger    *slog.Logger
}

// AdminServiceParams holds dependencies for AdminService, injected by Fx.
type AdminServiceParams struct {
	fx.In

	UserRepo  repository.UserRepository
	AuditRepo repository.AuditRepository
	Audit     service.AuditSink
	Logger    *slog.Logger
}

// NewAdminService is the constructor for adminService.
func NewAdminService(params AdminServiceParams) usecase.AdminUsecase {
	return &adminService{
		userRepo:  params.UserRepo,
		auditRepo: params.AuditRepo,
		audit:     params.Audit,
		logger:    params.Logger,
	}
}

func (srv *adminService) ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown role")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = defaultUserListLimit
	}

	users, err := srv.userRepo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	return users, nil
}

func (srv *adminService) Stats(ctx context.Context) (*entity.UserStats, error) {
	stats, err := srv.userRepo.Stats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute user stats")
	}

	return stats, nil
}

// ToggleActive flips the soft-delete flag. Live sessions of a deactivated user
// fail their next authentication.
func (srv *adminService) ToggleActive(ctx context.Context, actor policy.Actor, userID uuid.UUID, ipAddress string) (*entity.User, error) {
	if actor.ID == userID {
		return nil, domainerrors.ErrValidationFailed.WithMessage("You cannot deactivate your own account.")
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	active := !user.IsActive
	if err := srv.userRepo.SetActive(ctx, userID, active); err != nil {
		return nil, errors.Wrap(err, "failed to toggle user")
	}
	user.IsActive = active

	action := entity.AuditActionUserDeactivated
	if active {
		action = entity.AuditActionUserActivated
	}
	recordAudit(ctx, srv.audit, actorRef(actor.ID), action, entity.AuditResourceUsers, &userID, "", ipAddress)
	deliverycontext.GetLoggerOrDefault(ctx, srv.logger).Info("User activation changed",
		slog.String("userID", userID.String()), slog.Bool("active", active))

	return user, nil
}

func (srv *adminService) AuditLog(ctx context.Context, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLogLimit
	}
	limit = min(limit, maxAuditLogLimit)

	entries, err := srv.auditRepo.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit log")
	}

	return entries, nil
}

// pruner is implemented by the in-process limiter and session store.
type pruner interface {
	Prune(now time.Time) int
}

// maintenanceService implements the MaintenanceUsecase interface.
type maintenanceService struct {
	userRepo repository.UserRepository
	volatile []pruner
	logger   *slog.Logger
}

// MaintenanceServiceParams holds dependencies for MaintenanceService, injected by Fx.
type MaintenanceServiceParams struct {
	fx.In

	UserRepo    repository.UserRepository
	RateLimiter service.RateLimiter  `optional:"true"`
	Sessions    service.SessionStore `optional:"true"`
	Logger      *slog.Logger
}

// NewMaintenanceService is the constructor for maintenanceService.
func NewMaintenanceService(params MaintenanceServiceParams) usecase.MaintenanceUsecase {
	srv := &maintenanceService{userRepo: params.UserRepo, logger: params.Logger}
	for _, candidate := range []any{params.RateLimiter, params.Sessions} {
		if p, ok := candidate.(pruner); ok {
			srv.volatile = append(srv.volatile, p)
		}
	}

	return srv
}

func (srv *maintenanceService) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	purged, err := srv.userRepo.PurgeExpiredResetTokens(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge reset tokens")
	}

	return purged, nil
}

// PruneVolatileState drops expired in-process limiter keys and sessions.
// Redis-backed stores expire on their own and are skipped.
func (srv *maintenanceService) PruneVolatileState(now time.Time) int {
	total := 0
	for _, p := range srv.volatile {
		total += p.Prune(now)
	}

	return total
}
