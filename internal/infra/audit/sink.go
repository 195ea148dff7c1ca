// Package audit writes security-relevant actions to the audit log.
package audit

import (
	"context"
	"log/slog"
	"time"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/domain/service"

	"go.uber.org/fx"
)

// Params defines the dependencies for the audit sink
type Params struct {
	fx.In

	Repo   repository.AuditRepository
	Logger *slog.Logger
}

type repositorySink struct {
	repo   repository.AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSink creates an AuditSink that appends to the audit repository. A failed
// write is logged with the full entry so nothing is lost silently.
func NewSink(params Params) service.AuditSink {
	return &repositorySink{repo: params.Repo, logger: params.Logger, now: time.Now}
}

func (s *repositorySink) Record(ctx context.Context, entry *entity.AuditEntry) {
	if entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	attrs := entryAttrs(entry)
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "Failed to write audit entry",
			append(attrs, slog.Any("error", err))...)

		return
	}

	s.logger.LogAttrs(ctx, slog.LevelDebug, "Audit entry recorded", attrs...)
}

func entryAttrs(entry *entity.AuditEntry) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", string(entry.Action)),
		slog.String("resource", entry.Resource),
		slog.String("ip", entry.IPAddress),
	}
	if entry.UserID != nil {
		attrs = append(attrs, slog.String("userID", entry.UserID.String()))
	}
	if entry.ResourceID != nil {
		attrs = append(attrs, slog.String("resourceID", entry.ResourceID.String()))
	}
	if entry.Details != "" {
		attrs = append(attrs, slog.String("details", entry.Details))
	}

	return attrs
}
