// Package session implements the server-side session stores behind the portal cookie.
package session

import (
	"context"
	"encoding/json"
	"time"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	goredis "github.com/redis/go-redis/v9"
)

type redisStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisStore stores sessions as JSON strings under "<prefix>:session:<id>".
// Redis expires the key when the ttl passes.
func NewRedisStore(client goredis.UniversalClient, prefix string) service.SessionStore {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) key(id string) string {
	return s.prefix + ":session:" + id
}

func (s *redisStore) Load(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}

	var sess entity.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "failed to decode session")
	}
	sess.ID = id

	return &sess, nil
}

func (s *redisStore) Save(ctx context.Context, sess *entity.Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	if ttl <= 0 {
		return errors.Errorf("session ttl must be positive, got %s", ttl)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save session")
	}

	return nil
}

func (s *redisStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrap(err, "failed to destroy session")
	}

	return nil
}
