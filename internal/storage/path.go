package storage

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// relativePath strips the bucket/container prefix from p when a caller
// passes a fully qualified key, so every backend sees root-relative paths.
func relativePath(bucket, p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == bucket {
		return ""
	}
	return strings.TrimPrefix(p, bucket+"/")
}

// splitBucket separates "bucket/some/prefix" into the bucket name and the
// optional root prefix inside it.
func splitBucket(uri string) (bucket, prefix string) {
	uri = strings.Trim(uri, "/")
	bucket, prefix, _ = strings.Cut(uri, "/")
	return bucket, prefix
}

// joinKey prepends the root prefix inside the bucket, keeping forward
// slashes regardless of platform.
func joinKey(prefix, p string) string {
	p = strings.Trim(p, "/")
	if prefix == "" {
		return p
	}
	if p == "" {
		return prefix
	}
	return prefix + "/" + p
}

// hasSuffix reports whether p carries a file extension.
func hasSuffix(p string) bool {
	return path.Ext(p) != ""
}

// validateSingle enforces the single-file transfer guard: both sides must
// carry a file suffix, so a directory path is never treated as a blob key.
func validateSingle(local, remote string) error {
	if !hasSuffix(local) {
		return common.NewStorageError("validate", local, common.ErrMissingSuffix)
	}
	if !hasSuffix(remote) {
		return common.NewStorageError("validate", remote, common.ErrMissingSuffix)
	}
	return nil
}

// validateLocalDir enforces that recursive transfers are given a local
// directory, not a file.
func validateLocalDir(local string) error {
	info, err := os.Stat(local)
	if err != nil {
		return common.NewStorageError("validate", local, common.ErrInvalidPath)
	}
	if !info.IsDir() {
		return common.NewStorageError("validate", local, common.ErrNotADirectory)
	}
	return nil
}

// walkLocalFiles returns the slash-separated paths of every regular file
// under root, relative to root, in directory-walk order.
func walkLocalFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, common.NewStorageError("walk", root, err)
	}
	return files, nil
}

// ensureParentDir creates the parent directory for a local download target.
func ensureParentDir(p string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return common.NewStorageError("mkdir", dir, common.ErrMissingParent)
	}
	return nil
}

// suffixOf returns the file extension without the leading dot, or "".
func suffixOf(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}
