// Package cryptox implements the envelope-encryption helpers used by the
// card registry: salt generation, per-card key derivation from a master
// secret, uid-keyed wrapping of data keys, and AEAD encryption of a staged
// directory tree. It orchestrates standard primitives (AES-GCM, HKDF,
// argon2id) and implements none of its own.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

const (
	// SaltSize is the number of random bytes in a derivation salt.
	SaltSize = 16

	// KeySize is the AES-256 key length used throughout.
	KeySize = 32

	nonceSize = 12
)

// uidWrapSalt pins the uid-derived wrapping keys to this application. The
// wrapping key must be recoverable from the uid alone, so the salt is fixed.
var uidWrapSalt = []byte("cardkeeper.artifact-key.v1")

// GenerateSalt returns SaltSize cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt generation: %w", err)
	}
	return salt, nil
}

// DeriveEncryptionKey derives a per-card data key from the master secret,
// a random salt, and the registry type as the HKDF info context. The same
// master secret yields independent keys per registry type.
func DeriveEncryptionKey(masterSecret, salt []byte, context string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterSecret, salt, []byte(context))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return key, nil
}

// uidKey derives the wrapping key for a card from its uid alone, so the
// data key can be unwrapped later given only the stored row.
func uidKey(uid string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(uid), uidWrapSalt, nil)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("uid key derivation: %w", err)
	}
	return key, nil
}

// EncryptKey wraps a data key under a key derived from the card uid. The
// returned bytes are nonce-prefixed AES-GCM ciphertext and are what gets
// persisted in the artifact_key table; the data key is never stored in
// plaintext.
func EncryptKey(uid string, dataKey []byte) ([]byte, error) {
	wrappingKey, err := uidKey(uid)
	if err != nil {
		return nil, err
	}
	return seal(wrappingKey, dataKey)
}

// DecryptKey unwraps an encrypted data key using a key derived purely from
// the card uid.
func DecryptKey(uid string, wrapped []byte) ([]byte, error) {
	wrappingKey, err := uidKey(uid)
	if err != nil {
		return nil, err
	}
	return open(wrappingKey, wrapped)
}

// EncryptFile encrypts the file at path in place with AES-GCM. The nonce is
// prepended to the ciphertext.
func EncryptFile(path string, key []byte) error {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	ciphertext, err := seal(key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", path, err)
	}
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DecryptFile decrypts a nonce-prefixed AES-GCM file in place. A wrong key
// fails authentication rather than producing corrupted bytes.
func DecryptFile(path string, key []byte) error {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	plaintext, err := open(key, ciphertext)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", path, err)
	}
	if err := os.WriteFile(path, plaintext, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// EncryptDirectory walks the directory tree rooted at dir and encrypts every
// regular file in place. The first failure aborts the walk; no partial
// recovery is attempted.
func EncryptDirectory(dir string, key []byte) error {
	return walkFiles(dir, func(path string) error {
		return EncryptFile(path, key)
	})
}

// DecryptDirectory reverses EncryptDirectory with the same abort-on-first-
// failure policy.
func DecryptDirectory(dir string, key []byte) error {
	return walkFiles(dir, func(path string) error {
		return DecryptFile(path, key)
	})
}

func walkFiles(dir string, fn func(path string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return fn(path)
	})
}

func seal(key, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, data []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize {
		return nil, common.ErrDecryptFailed
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// HashPassword hashes a login password with argon2id. The returned value is
// salt-prefixed.
func HashPassword(password string) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, KeySize)
	return append(salt, hash...), nil
}

// VerifyPassword reports whether the password matches a salt-prefixed
// argon2id hash in constant time.
func VerifyPassword(password string, hashed []byte) bool {
	if len(hashed) != SaltSize+KeySize {
		return false
	}
	salt, want := hashed[:SaltSize], hashed[SaltSize:]
	got := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, KeySize)
	return subtle.ConstantTimeCompare(got, want) == 1
}
