package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "export.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`[{"key":"group_1"}]`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"group_1"}]`, string(data))

	require.NoError(t, AtomicWriteFile(path, []byte(`[]`)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestAtomicWriter_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewAtomicWriter(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
	assert.Error(t, w.Commit())
}

func TestNewAtomicWriter_InvalidName(t *testing.T) {
	_, err := NewAtomicWriter(string(filepath.Separator))
	assert.Error(t, err)
}

func TestEnsureFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))

	require.NoError(t, EnsureFilePermissions(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Error(t, EnsureFilePermissions(filepath.Join(t.TempDir(), "missing")))
}
