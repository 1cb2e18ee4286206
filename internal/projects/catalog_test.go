package projects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestCatalogList(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "foo/main.html")
	touch(t, root, "foo/sketch.js")
	touch(t, root, "foo/helpers.js")
	touch(t, root, "bar/sketch.js")
	touch(t, root, "baz/notes.txt")
	touch(t, root, "qux/node_modules/lib/index.js")
	touch(t, root, ".cache/main.html")
	touch(t, root, "foo/lib/deep.js")

	catalog, err := NewCatalog(DefaultConfig(root))
	require.NoError(t, err)

	list, err := catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "bar", list[0].Name)
	assert.False(t, list[0].HasPage)
	assert.Equal(t, []string{"sketch"}, list[0].Sketches)

	assert.Equal(t, "foo", list[1].Name)
	assert.True(t, list[1].HasPage)
	assert.Equal(t, []string{"helpers", "sketch"}, list[1].Sketches)
	assert.True(t, list[1].HasSketch("sketch"))
	assert.False(t, list[1].HasSketch("deep"))
	assert.False(t, list[1].Modified.IsZero())
}

func TestCatalogGet(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "foo/main.html")

	catalog, err := NewCatalog(DefaultConfig(root))
	require.NoError(t, err)

	p, ok, err := catalog.Get(context.Background(), "foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, p.HasPage)

	_, ok, err = catalog.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogMissingRoot(t *testing.T) {
	catalog, err := NewCatalog(DefaultConfig(filepath.Join(t.TempDir(), "nope")))
	require.NoError(t, err)

	_, err = catalog.List(context.Background())
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestCatalogRejectsBadPattern(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.SketchPattern = "[unclosed"

	_, err := NewCatalog(cfg)
	assert.Error(t, err)
}

func TestCatalogHonorsContext(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "foo/main.html")

	catalog, err := NewCatalog(DefaultConfig(root))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = catalog.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
