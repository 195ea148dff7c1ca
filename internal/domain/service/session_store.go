package service

import (
	"context"
	"time"

	"healthbridge/internal/domain/entity"
)

// SessionStore is the keyed blob store holding server-side sessions.
type SessionStore interface {
	// Load returns the session stored under id, or nil when none exists or it has expired.
	Load(ctx context.Context, id string) (*entity.Session, error)

	// Save stores session under session.ID for ttl.
	Save(ctx context.Context, session *entity.Session, ttl time.Duration) error

	// Destroy removes the session. Destroying a missing session is not an error.
	Destroy(ctx context.Context, id string) error
}
