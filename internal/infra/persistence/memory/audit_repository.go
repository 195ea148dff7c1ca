package memory

import (
	"context"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

type auditRepository struct {
	scope scope
}

func (r *auditRepository) Create(_ context.Context, entry *entity.AuditEntry) error {
	return r.scope.run(func(t *tables) error {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.scope.now()
		}
		t.audit = append(t.audit, *entry)

		return nil
	})
}

// List walks the append-only log backwards so the newest entries come first.
func (r *auditRepository) List(_ context.Context, n int) ([]*entity.AuditEntry, error) {
	var entries []*entity.AuditEntry
	err := r.scope.run(func(t *tables) error {
		for i := len(t.audit) - 1; i >= 0; i-- {
			if n > 0 && len(entries) == n {
				break
			}
			entry := t.audit[i]
			if entry.UserID != nil {
				if user, ok := t.users[*entry.UserID]; ok {
					entry.UserEmail = user.Email
					entry.UserFirstName = user.FirstName
					entry.UserLastName = user.LastName
				}
			}
			entries = append(entries, &entry)
		}

		return nil
	})

	return entries, err
}

// Entries returns a copy of every audit entry in write order.
func (s *Store) Entries() []entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.AuditEntry(nil), s.data.audit...)
}
