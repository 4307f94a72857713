package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGetRoundTrip(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := ArtifactKey(uuid.New(), ".png")

	err := s.Put(ctx, key, strings.NewReader("png bytes"), PutOptions{ContentType: "image/png"})
	require.NoError(t, err)

	rc, info, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
	assert.Equal(t, int64(9), info.Size)

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStorage_GetMissingKey(t *testing.T) {
	s := newTestLocalStorage(t)

	_, _, err := s.Get(context.Background(), "accounts/nope/artifacts/missing.png")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_PutRejectsOversizedObject(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := ArtifactKey(uuid.New(), ".png")

	err := s.Put(ctx, key, strings.NewReader("0123456789"), PutOptions{MaxSize: 5})
	assert.True(t, IsTooLarge(err))

	// The partial write must not survive.
	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_PutRejectsOverwriteByDefault(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := ArtifactKey(uuid.New(), ".png")

	require.NoError(t, s.Put(ctx, key, strings.NewReader("first"), PutOptions{}))

	err := s.Put(ctx, key, strings.NewReader("second"), PutOptions{})
	require.Error(t, err)

	require.NoError(t, s.Put(ctx, key, strings.NewReader("second"), PutOptions{Overwrite: true}))

	rc, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(data))
}

func TestLocalStorage_RejectsPathTraversal(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/../../escape", "a/b/../../../etc/passwd"} {
		err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		assert.Error(t, err, "key %q must be rejected", key)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := ArtifactKey(uuid.New(), ".png")

	require.NoError(t, s.Put(ctx, key, strings.NewReader("x"), PutOptions{}))
	require.NoError(t, s.Delete(ctx, key))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_URL(t *testing.T) {
	s := newTestLocalStorage(t)

	url, err := s.URL(context.Background(), "accounts/u/artifacts/a.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/accounts/u/artifacts/a.png", url)
}
