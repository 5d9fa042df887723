package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblin-space/core/internal/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "media_entries/12/thumb.jpg", Key("media_entries", "12", "thumb.jpg"))
	assert.Equal(t, "a/b", Key("/a//b/"))
	assert.Equal(t, "etc/passwd", Key("../../etc/passwd"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	key := Key("media_entries", "1", "original.png")
	require.NoError(t, s.Put(ctx, key, strings.NewReader("pixels")))

	r, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotExist)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, key))

	assert.Error(t, s.Put(ctx, "", strings.NewReader("x")))
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.StorageRuntimeConfig{Backend: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	s, err = New(config.StorageRuntimeConfig{Backend: "s3", S3: config.S3StorageConfig{
		Bucket:   "media",
		Region:   "us-east-1",
		Endpoint: "localhost:9000",
	}})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, s)

	_, err = New(config.StorageRuntimeConfig{Backend: "ftp"})
	assert.Error(t, err)
}
