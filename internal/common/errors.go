// Package common defines shared constants and sentinel errors used across
// the storage, registry, and API layers of cardkeeper. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Registry-level errors.
	ErrCardNotFound         = errors.New("card not found")
	ErrUIDCollision         = errors.New("uid already exists, use update instead")
	ErrRegistryTypeMismatch = errors.New("card type does not match registry type")
	ErrArtifactKeyNotFound  = errors.New("artifact key not found")

	// Version errors.
	ErrEmptyVersion      = errors.New("empty version string")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrInvalidPreRelease = errors.New("invalid pre-release identifier")
	ErrInvalidBuild      = errors.New("invalid build identifier")

	// Storage path validation errors.
	ErrInvalidPath   = errors.New("invalid path")
	ErrMissingSuffix = errors.New("path has no file suffix")
	ErrNotADirectory = errors.New("recursive transfer requires a directory")
	ErrMissingParent = errors.New("parent directory does not exist")

	// Query validation errors.
	ErrInvalidUID = errors.New("uid is not a valid uuid")

	// Auth errors.
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Crypto errors.
	ErrDecryptFailed = errors.New("decryption failed")
)

// StorageError wraps a backend I/O or validation failure with the operation
// and path it occurred on.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError builds a StorageError for the given operation and path.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

// VersionError wraps a semver parse or bump failure with the offending input.
type VersionError struct {
	Input string
	Err   error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version %q: %v", e.Input, e.Err)
}

func (e *VersionError) Unwrap() error { return e.Err }

// RegistryError wraps a registry orchestration failure.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// SqlError wraps a query failure with the statement kind that produced it.
type SqlError struct {
	Op  string
	Err error
}

func (e *SqlError) Error() string {
	return fmt.Sprintf("sql %s: %v", e.Op, e.Err)
}

func (e *SqlError) Unwrap() error { return e.Err }
