package payload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStoreFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.lua"), []byte("print('hi')"), 0o600))
	s := DirStore{Root: dir}
	ctx := context.Background()

	b, err := s.Fetch(ctx, "script.lua")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(b))

	_, err = s.Fetch(ctx, "missing.lua")
	assert.ErrorIs(t, err, os.ErrNotExist)

	for _, id := range []string{"", "..", "../etc/passwd", "sub/file"} {
		_, err = s.Fetch(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidID, "id %q", id)
	}
}

func TestDirStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DirStore{Root: t.TempDir()}.Fetch(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticStore(t *testing.T) {
	s := StaticStore{"a": []byte("A")}
	b, err := s.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), b)

	_, err = s.Fetch(context.Background(), "b")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
