package cryptox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

func TestDeriveEncryptionKey_Deterministic(t *testing.T) {
	master := []byte("master-secret")
	salt := []byte("0123456789abcdef")

	key1, err := DeriveEncryptionKey(master, salt, "model")
	require.NoError(t, err)
	key2, err := DeriveEncryptionKey(master, salt, "model")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)
}

func TestDeriveEncryptionKey_ContextSeparation(t *testing.T) {
	master := []byte("master-secret")
	salt := []byte("0123456789abcdef")

	modelKey, err := DeriveEncryptionKey(master, salt, "model")
	require.NoError(t, err)
	dataKey, err := DeriveEncryptionKey(master, salt, "data")
	require.NoError(t, err)

	// same master secret, independent keys per registry type
	assert.False(t, bytes.Equal(modelKey, dataKey))
}

func TestGenerateSalt(t *testing.T) {
	s1, err := GenerateSalt()
	require.NoError(t, err)
	s2, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, s1, SaltSize)
	assert.NotEqual(t, s1, s2)
}

func TestKeyWrap_RoundTrip(t *testing.T) {
	dataKey := bytes.Repeat([]byte{0xAB}, KeySize)

	wrapped, err := EncryptKey("0195f4a2-1111-7000-8000-000000000001", dataKey)
	require.NoError(t, err)
	assert.NotContains(t, string(wrapped), string(dataKey))

	unwrapped, err := DecryptKey("0195f4a2-1111-7000-8000-000000000001", wrapped)
	require.NoError(t, err)
	assert.Equal(t, dataKey, unwrapped)
}

func TestKeyWrap_WrongUIDFails(t *testing.T) {
	dataKey := bytes.Repeat([]byte{0xCD}, KeySize)

	wrapped, err := EncryptKey("uid-a", dataKey)
	require.NoError(t, err)

	_, err = DecryptKey("uid-b", wrapped)
	assert.ErrorIs(t, err, common.ErrDecryptFailed)
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, content, 0o600))
	}
}

func TestDirectory_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"model.onnx":          []byte("weights"),
		"metadata/card.json":  []byte(`{"name":"m"}`),
		"metadata/extra.yaml": []byte("a: 1"),
	}
	writeTree(t, dir, files)

	key := bytes.Repeat([]byte{0x11}, KeySize)
	require.NoError(t, EncryptDirectory(dir, key))

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotEqual(t, content, got, name)
	}

	require.NoError(t, DecryptDirectory(dir, key))

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, content, got, name)
	}
}

func TestDirectory_WrongKeyFails(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{"f.bin": []byte("payload")})

	key := bytes.Repeat([]byte{0x22}, KeySize)
	require.NoError(t, EncryptDirectory(dir, key))

	wrong := bytes.Repeat([]byte{0x33}, KeySize)
	err := DecryptDirectory(dir, wrong)
	assert.ErrorIs(t, err, common.ErrDecryptFailed)
}

func TestPasswordHash(t *testing.T) {
	hashed, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("hunter2", hashed))
	assert.False(t, VerifyPassword("hunter3", hashed))
	assert.False(t, VerifyPassword("hunter2", hashed[:10]))
}
