package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/domain"
)

func TestPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "u1/1-abc.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/u1/1-abc.png", url)

	raw, err := os.ReadFile(filepath.Join(dir, "u1", "1-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(raw))

	require.NoError(t, store.Delete(ctx, "u1/1-abc.png"))
	assert.ErrorIs(t, store.Delete(ctx, "u1/1-abc.png"), domain.ErrNotFound)
}

func TestRejectsEscapingNames(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "../escape.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = store.Put(ctx, "", []byte("x"), "image/png")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, store.Delete(ctx, "u1/../../etc/passwd"), domain.ErrValidation)
}
