package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, urlPrefix string) *Backend {
	t.Helper()
	store, err := New(Config{BaseDir: t.TempDir(), URLPrefix: urlPrefix})
	require.NoError(t, err)
	return store.(*Backend)
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	backend := newTestBackend(t, "")
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "V/3/primary/c/plate.exr", strings.NewReader("scanline")))

	reader, err := backend.Download(ctx, "V/3/primary/c/plate.exr")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "scanline", string(data))

	meta, err := backend.GetObjectMeta(ctx, "V/3/primary/c/plate.exr")
	require.NoError(t, err)
	assert.Equal(t, int64(8), meta.Size)
}

func TestKeyEscapeRejected(t *testing.T) {
	backend := newTestBackend(t, "")
	ctx := context.Background()

	assert.Error(t, backend.Upload(ctx, "../outside", strings.NewReader("x")))
	_, err := backend.Download(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestDownloadURL(t *testing.T) {
	ctx := context.Background()

	_, err := newTestBackend(t, "").GetDownloadURL(ctx, "key", "")
	assert.Error(t, err)

	url, err := newTestBackend(t, "http://localhost:8080/files/").GetDownloadURL(ctx, "a/b", "take one.mov")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/download/a/b?filename=take+one.mov", url)
}

func TestDeleteCleansEmptyDirectories(t *testing.T) {
	backend := newTestBackend(t, "")
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "V/9/thumbnail/d/thumb.jpg", strings.NewReader("x")))
	require.NoError(t, backend.Delete(ctx, "V/9/thumbnail/d/thumb.jpg"))

	_, err := os.Stat(filepath.Join(backend.baseDir, "V"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, backend.Delete(ctx, "V/9/thumbnail/d/thumb.jpg"))
}
