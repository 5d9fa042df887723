package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblin-space/core/internal/pkg/redis"
)

func TestDial(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rdb, err := redis.Dial(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Set(ctx, "greeting", "hello", 0).Err())
	got, err := mr.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := redis.Dial(context.Background(), "http://localhost:6379")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestDialFailsWhenServerIsGone(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.Dial(context.Background(), "redis://"+addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
