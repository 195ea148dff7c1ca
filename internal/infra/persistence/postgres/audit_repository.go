package postgres

import (
	"context"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/repository"
	"healthbridge/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository is the constructor for the append-only audit log.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	entryM := &model.AuditLogModel{
		ID:         entry.ID,
		UserID:     entry.UserID,
		Action:     string(entry.Action),
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Details:    entry.Details,
		IPAddress:  entry.IPAddress,
		CreatedAt:  entry.CreatedAt,
	}
	if err := repo.db.WithContext(ctx).Omit("User").Create(entryM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to write audit entry")
	}
	entry.CreatedAt = entryM.CreatedAt

	return nil
}

func (repo *auditRepository) List(ctx context.Context, limit int) ([]*entity.AuditEntry, error) {
	query := repo.db.WithContext(ctx).Preload("User").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entriesM []*model.AuditLogModel
	if err := query.Find(&entriesM).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list audit log")
	}

	entries := make([]*entity.AuditEntry, 0, len(entriesM))
	for _, m := range entriesM {
		entry := &entity.AuditEntry{
			ID:         m.ID,
			UserID:     m.UserID,
			Action:     entity.AuditAction(m.Action),
			Resource:   m.Resource,
			ResourceID: m.ResourceID,
			Details:    m.Details,
			IPAddress:  m.IPAddress,
			CreatedAt:  m.CreatedAt,
		}
		if m.User != nil {
			entry.UserEmail = m.User.Email
			entry.UserFirstName = m.User.FirstName
			entry.UserLastName = m.User.LastName
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
