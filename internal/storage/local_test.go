package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

func newLocal(t *testing.T) *LocalFSStorage {
	t.Helper()
	s, err := NewLocalFSStorage(t.TempDir(), logging.NewJSONLogger(os.Stderr))
	require.NoError(t, err)
	return s
}

func TestLocal_PutGetRoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "payload.bin")
	content := []byte("some model weights")
	require.NoError(t, os.WriteFile(src, content, 0o600))

	require.NoError(t, s.Put(ctx, src, "space/model/v1/payload.bin", false))

	exists, err := s.Exists(ctx, "space/model/v1/payload.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, s.Get(ctx, dest, "space/model/v1/payload.bin", false))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocal_SingleFileRequiresSuffix(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	err := s.Put(ctx, src, "space/model/v1/payload", false)
	assert.ErrorIs(t, err, common.ErrMissingSuffix)

	err = s.Get(ctx, filepath.Join(t.TempDir(), "out"), "space/model/v1/payload.bin", false)
	assert.ErrorIs(t, err, common.ErrMissingSuffix)
}

func TestLocal_RecursiveRequiresDirectory(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "not-a-dir.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	err := s.Put(ctx, file, "space/tree", true)
	assert.ErrorIs(t, err, common.ErrNotADirectory)
}

func TestLocal_RecursiveListingComplete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	local := t.TempDir()
	files := []string{"a.txt", "sub/b.txt", "sub/deep/c.json"}
	for _, f := range files {
		p := filepath.Join(local, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o600))
	}

	require.NoError(t, s.Put(ctx, local, "space/tree", true))

	names, err := s.Find(ctx, "space/tree")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"space/tree/a.txt",
		"space/tree/sub/b.txt",
		"space/tree/sub/deep/c.json",
	}, names)

	infos, err := s.FindInfo(ctx, "space/tree")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.NotZero(t, info.Size)
		assert.Equal(t, ObjectTypeFile, info.ObjectType)
		assert.NotEmpty(t, info.Suffix)
	}
}

func TestLocal_RecursiveGetRestoresTree(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	local := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(local, "nested"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(local, "root.txt"), []byte("r"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(local, "nested", "leaf.txt"), []byte("l"), 0o600))

	require.NoError(t, s.Put(ctx, local, "artifacts/run1", true))

	restore := filepath.Join(t.TempDir(), "restore")
	require.NoError(t, s.Get(ctx, restore, "artifacts/run1", true))

	got, err := os.ReadFile(filepath.Join(restore, "nested", "leaf.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("l"), got)
}

func TestLocal_CopyAndRm(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o600))
	require.NoError(t, s.Put(ctx, src, "a/f.txt", false))

	require.NoError(t, s.Copy(ctx, "a/f.txt", "b/f.txt", false))
	exists, err := s.Exists(ctx, "b/f.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Rm(ctx, "a", true))
	exists, err = s.Exists(ctx, "a/f.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// removing an already-absent path is not an error
	require.NoError(t, s.Rm(ctx, "a/f.txt", false))
}

func TestLocal_MultipartIsPlainCopy(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, 1024), 0o600))

	uploader, err := s.CreateMultipartUpload(ctx, "blobs/big.bin")
	require.NoError(t, err)
	assert.NotEmpty(t, uploader.SessionURL())

	require.NoError(t, uploader.UploadFileInChunks(ctx, src))

	exists, err := s.Exists(ctx, "blobs/big.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocal_PresignedURLIsPath(t *testing.T) {
	s := newLocal(t)

	url, err := s.GeneratePresignedURL(context.Background(), "x/y.txt", 0)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(url))
}
