package filekv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "masomo", "storage.json")

	kv, err := Open(path)
	require.NoError(t, err)

	_, err = kv.Get(ctx, "token")
	assert.Equal(t, core.ErrKeyNotFound, err)

	require.NoError(t, kv.Set(ctx, "token", "abc"))
	require.NoError(t, kv.Set(ctx, "language", "ar"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermissions), info.Mode().Perm())

	// reopen: values are persisted
	kv, err = Open(path)
	require.NoError(t, err)
	val, err := kv.Get(ctx, "token")
	assert.NoError(t, err)
	assert.Equal(t, "abc", val)

	require.NoError(t, kv.Delete(ctx, "token", "missing"))
	kv, err = Open(path)
	require.NoError(t, err)
	_, err = kv.Get(ctx, "token")
	assert.Equal(t, core.ErrKeyNotFound, err)
	val, err = kv.Get(ctx, "language")
	assert.NoError(t, err)
	assert.Equal(t, "ar", val)
}

func TestOpen_corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), FilePermissions))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultDir, DefaultFileName), path)
}
