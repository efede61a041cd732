package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOpenAndLatest(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("digest-1.pdf", []byte("one")))
	require.NoError(t, store.Save("digest-2.pdf", []byte("two")))
	require.NoError(t, store.Save("digest-2.csv", []byte("csv")))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.baseDir, "digest-1.pdf"), old, old))

	latest, err := store.Latest(".pdf")
	require.NoError(t, err)
	assert.Equal(t, "digest-2.pdf", latest)

	f, err := store.Open(latest)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))
}

func TestLatestEmpty(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.Latest(".pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"", "..", "../etc/passwd", "/abs", "sub/file"} {
		assert.ErrorIs(t, store.Save(name, nil), ErrInvalidName, name)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("old.csv", []byte("x")))
	require.NoError(t, store.Save("new.csv", []byte("y")))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.baseDir, "old.csv"), old, old))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)
}
