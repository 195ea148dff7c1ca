package service

import (
	"context"

	"healthbridge/internal/domain/entity"
)

// AuditSink records security-relevant actions. Sink failures never fail the caller.
type AuditSink interface {
	Record(ctx context.Context, entry *entity.AuditEntry)
}
