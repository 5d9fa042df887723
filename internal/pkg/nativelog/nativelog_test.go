package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDirPrefersEnv(t *testing.T) {
	t.Setenv(EnvLogDir, "")
	assert.Equal(t, "/var/log/gmg", ResolveDir("/var/log/gmg"))
	assert.Equal(t, filepath.Join(".", "logs"), ResolveDir(" "))

	t.Setenv(EnvLogDir, "/tmp/gmg")
	assert.Equal(t, "/tmp/gmg", ResolveDir("/var/log/gmg"))
}

func TestWriterAppendsToDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	w, err := NewWriter(dir)
	require.NoError(t, err)

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, TodayFilename(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}
