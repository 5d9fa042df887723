// Package storage keeps the files behind media entries: originals, derived
// renditions and attachments. Keys are slash separated relative paths.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/goblin-space/core/internal/config"
)

// ErrNotExist is returned when opening a key that holds no file.
var ErrNotExist = errors.New("storage: file does not exist")

// Store is a flat key to file mapping.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by the storage config.
func New(cfg config.StorageRuntimeConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.Dir)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// Key joins path segments into a store key, e.g. Key("media_entries", "12", "thumb.jpg").
func Key(parts ...string) string {
	return normalizeKey(path.Join(parts...))
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

func validKey(key string) (string, error) {
	k := normalizeKey(key)
	if k == "" || k == "." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return k, nil
}
