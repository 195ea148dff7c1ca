package impl

import (
	"context"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/service"

	"github.com/google/uuid"
)

func recordAudit(ctx context.Context, sink service.AuditSink, userID *uuid.UUID, action entity.AuditAction, resource string, resourceID *uuid.UUID, details, ip string) {
	sink.Record(ctx, newAuditEntry(userID, action, resource, resourceID, details, ip))
}

func newAuditEntry(userID *uuid.UUID, action entity.AuditAction, resource string, resourceID *uuid.UUID, details, ip string) *entity.AuditEntry {
	return &entity.AuditEntry{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  ip,
	}
}

func actorRef(id uuid.UUID) *uuid.UUID {
	return &id
}
