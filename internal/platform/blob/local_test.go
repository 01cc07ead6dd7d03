package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_WriteReadExists(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	ok, err := l.Exists(ctx, "mall/final/mall_floor_1_final.geojson")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Read(ctx, "mall/final/mall_floor_1_final.geojson")
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, l.Write(ctx, "mall/final/mall_floor_1_final.geojson", []byte(`{"features":[]}`)))
	ok, err = l.Exists(ctx, "mall/final/mall_floor_1_final.geojson")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := l.Read(ctx, "mall/final/mall_floor_1_final.geojson")
	require.NoError(t, err)
	assert.Equal(t, `{"features":[]}`, string(got))

	// overwrite leaves no temp files behind
	require.NoError(t, l.Write(ctx, "mall/final/mall_floor_1_final.geojson", []byte(`{"features":[{}]}`)))
	entries, err := os.ReadDir(filepath.Join(l.Root, "mall", "final"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocal_RenameAndDelete(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	require.NoError(t, l.Write(ctx, "old/base/old_floor_1.geojson", []byte("{}")))

	err := l.Rename(ctx, "missing/file.geojson", "x/file.geojson")
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, l.Rename(ctx, "old", "new"))
	ok, _ := l.Exists(ctx, "new/base/old_floor_1.geojson")
	assert.True(t, ok)
	ok, _ = l.Exists(ctx, "old")
	assert.False(t, ok)

	require.NoError(t, l.Rename(ctx, "new/base/old_floor_1.geojson", "new/base/new_floor_1.geojson"))
	ok, _ = l.Exists(ctx, "new/base/new_floor_1.geojson")
	assert.True(t, ok)

	require.NoError(t, l.Delete(ctx, "new"))
	assert.ErrorIs(t, l.Delete(ctx, "new"), ErrNotExist)
}

func TestLocal_MkdirAll(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	require.NoError(t, l.MkdirAll(ctx, "mall/updates"))
	ok, err := l.Exists(ctx, "mall/updates")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/geo+json", contentType("a/b.geojson"))
	assert.Equal(t, "application/json", contentType("a/b.JSON"))
	assert.Equal(t, "image/jpeg", contentType("floor.jpeg"))
	assert.Equal(t, "application/octet-stream", contentType("README"))
}
