package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolWatcher_Observe(t *testing.T) {
	var buf bytes.Buffer
	watcher := &poolWatcher{
		logger:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		slowWait: 50 * time.Millisecond,
	}
	ctx := context.Background()
	last := sql.DBStats{WaitCount: 10, WaitDuration: time.Second}

	t.Run("no new waits", func(t *testing.T) {
		buf.Reset()
		watcher.observe(ctx, last, last)
		assert.Empty(t, buf.String())
	})

	t.Run("short waits are debug", func(t *testing.T) {
		buf.Reset()
		watcher.observe(ctx, last, sql.DBStats{WaitCount: 12, WaitDuration: time.Second + 10*time.Millisecond})
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "waits=2")
		assert.Contains(t, buf.String(), "avg_wait=5ms")
	})

	t.Run("long waits warn", func(t *testing.T) {
		buf.Reset()
		watcher.observe(ctx, last, sql.DBStats{WaitCount: 11, WaitDuration: time.Second + 80*time.Millisecond, InUse: 20, MaxOpenConnections: 20})
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "saturated")
		assert.Contains(t, buf.String(), "in_use=20")
	})
}
