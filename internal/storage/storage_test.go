package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classificados/internal/config"
)

func TestLocal_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := st.Put(ctx, "1700000000000-42.png", strings.NewReader("png-bytes"), PutObjectOptions{
		Size:        9,
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-42.png", info.Key)
	assert.Equal(t, int64(9), info.Size)

	rc, got, err := st.Get(ctx, "1700000000000-42.png")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, int64(9), got.Size)

	require.NoError(t, st.Delete(ctx, "1700000000000-42.png"))
	_, err = os.Stat(filepath.Join(dir, "1700000000000-42.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// deleting twice is fine
	assert.NoError(t, st.Delete(ctx, "1700000000000-42.png"))
}

func TestLocal_GetMissing(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, _, err = st.Get(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = st.Put(ctx, "../evil.jpg", strings.NewReader("x"), PutObjectOptions{})
	assert.Error(t, err)

	_, _, err = st.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_PutCanceledContext(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = st.Put(ctx, "a.jpg", strings.NewReader("data"), PutObjectOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")
}

func TestNewLocal_RequiresDir(t *testing.T) {
	_, err := NewLocal("")
	assert.Error(t, err)
}

func TestNewMinIO_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinIOConfig
	}{
		{name: "missing endpoint", cfg: config.MinIOConfig{AccessKey: "a", SecretKey: "b", Bucket: "c"}},
		{name: "missing credentials", cfg: config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "c"}},
		{name: "missing bucket", cfg: config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NewMinIO(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestMapMinIOError(t *testing.T) {
	err := mapMinIOError(minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.NotErrorIs(t, mapMinIOError(other), ErrNotFound)
}
