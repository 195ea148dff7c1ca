package session

import (
	"context"
	"testing"
	"time"

	"healthbridge/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func newTestSession(id string) *entity.Session {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	return &entity.Session{
		ID:                id,
		UserID:            uuid.New(),
		Role:              entity.RoleDoctor,
		TwoFactorVerified: true,
		LastActivity:      now,
		CreatedAt:         now,
	}
}

func TestRedisStore_SaveLoadDestroy(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "hb")

	sess := newTestSession("abc")
	require.NoError(t, store.Save(ctx, sess, time.Hour))
	assert.True(t, mr.Exists("hb:session:abc"))

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "abc", loaded.ID)
	assert.Equal(t, sess.UserID, loaded.UserID)
	assert.Equal(t, entity.RoleDoctor, loaded.Role)
	assert.True(t, loaded.TwoFactorVerified)
	assert.True(t, sess.LastActivity.Equal(loaded.LastActivity))

	require.NoError(t, store.Destroy(ctx, "abc"))
	loaded, err = store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Destroying twice is fine.
	require.NoError(t, store.Destroy(ctx, "abc"))
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "hb")

	require.NoError(t, store.Save(ctx, newTestSession("ttl"), time.Minute))

	mr.FastForward(2 * time.Minute)

	loaded, err := store.Load(ctx, "ttl")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "hb")

	assert.Error(t, store.Save(ctx, &entity.Session{}, time.Hour))
	assert.Error(t, store.Save(ctx, newTestSession("x"), 0))

	require.NoError(t, mr.Set("hb:session:bad", "{not json"))
	_, err := store.Load(ctx, "bad")
	assert.Error(t, err)

	loaded, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
