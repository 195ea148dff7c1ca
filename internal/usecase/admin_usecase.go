package usecase

import (
	"context"
	"time"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/policy"

	"github.com/google/uuid"
)

// AdminUsecase covers user administration and the audit log.
type AdminUsecase interface {
	ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
	Stats(ctx context.Context) (*entity.UserStats, error)
	ToggleActive(ctx context.Context, actor policy.Actor, userID uuid.UUID, ipAddress string) (*entity.User, error)
	AuditLog(ctx context.Context, limit int) ([]*entity.AuditEntry, error)
}

// MaintenanceUsecase runs periodic housekeeping.
type MaintenanceUsecase interface {
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	PruneVolatileState(now time.Time) int
}
