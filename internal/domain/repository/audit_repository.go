package repository

import (
	"context"

	"healthbridge/internal/domain/entity"
)

// AuditRepository is the append-only store behind the audit sink.
type AuditRepository interface {
	// Create appends an entry.
	Create(ctx context.Context, entry *entity.AuditEntry) error

	// List returns the newest entries joined with the actor's name.
	List(ctx context.Context, limit int) ([]*entity.AuditEntry, error)
}
