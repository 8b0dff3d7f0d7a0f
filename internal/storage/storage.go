// Package storage provides a unified filesystem abstraction over local disk,
// AWS S3, Google Cloud Storage, and Azure Blob Storage, with chunked
// multipart transfer for large objects. Callers work with backend-relative
// paths: the bucket or container prefix is stripped on the way in and
// re-applied internally, so no higher layer ever branches on backend.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
)

// ChunkSize is the fixed multipart chunk size. Uploads larger than one chunk
// go through a multipart session; chunks are uploaded strictly sequentially
// because the completion calls require ordered, accounted-for parts.
const ChunkSize = 5 * 1024 * 1024

// DefaultPresignTTL bounds presigned URL validity when the caller passes a
// zero TTL.
const DefaultPresignTTL = 15 * time.Minute

// ObjectType and FileInfo live in models so the API payloads can carry
// listing records without importing this package. They are aliased here
// because backends produce them.
type ObjectType = models.ObjectType

const (
	ObjectTypeFile      = models.ObjectTypeFile
	ObjectTypeDirectory = models.ObjectTypeDirectory
)

// FileInfo is a listing record returned by FindInfo.
type FileInfo = models.FileInfo

// MultiPartUploader normalizes the backends' multipart protocols behind one
// session abstraction. SessionURL returns whatever token identifies the open
// session to its backend (a resumable-upload URL for Google, an upload id
// for AWS, a block-blob URL for Azure, a destination path for Local); the
// value is opaque to callers.
type MultiPartUploader interface {
	SessionURL() string

	// UploadFileInChunks reads the local file sequentially in ChunkSize
	// pieces, pushes each to the backend's part-upload primitive, and
	// finalizes the session. A failed chunk aborts the whole transfer;
	// there is no partial resume and the caller must retry the entire put.
	UploadFileInChunks(ctx context.Context, localPath string) error
}

// FileSystem is the capability set every backend implements. All remote
// paths are relative to the configured bucket/container/root.
type FileSystem interface {
	// Name identifies the backend ("local", "aws", "google", "azure").
	Name() string

	// Find lists object paths under path, relative to the backend root.
	Find(ctx context.Context, path string) ([]string, error)

	// FindInfo lists objects under path with size and timestamp metadata.
	FindInfo(ctx context.Context, path string) ([]FileInfo, error)

	// Get downloads remote to local. With recursive set, remote is treated
	// as a tree and local must be a directory.
	Get(ctx context.Context, local, remote string, recursive bool) error

	// Put uploads local to remote, chunking files larger than ChunkSize.
	// With recursive set, local must be a directory; files upload one at a
	// time in directory-walk order.
	Put(ctx context.Context, local, remote string, recursive bool) error

	// Copy duplicates an object (or tree, with recursive) within the backend.
	Copy(ctx context.Context, src, dest string, recursive bool) error

	// Rm removes an object, or a whole tree with recursive.
	Rm(ctx context.Context, path string, recursive bool) error

	// Exists reports whether an object or prefix exists.
	Exists(ctx context.Context, path string) (bool, error)

	// GeneratePresignedURL returns a time-limited URL for direct download.
	GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// CreateMultipartUpload opens a multipart session for the remote path.
	CreateMultipartUpload(ctx context.Context, path string) (MultiPartUploader, error)
}

// NewFileSystem selects a backend from the storage URI scheme: gs:// maps to
// Google, s3:// to AWS, az:// to Azure, anything else to local disk. This is
// the only place backend selection happens.
func NewFileSystem(ctx context.Context, cfg *config.Config, log logging.Logger) (FileSystem, error) {
	uri := cfg.StorageURI
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return NewGCSStorage(ctx, strings.TrimPrefix(uri, "gs://"), log)
	case strings.HasPrefix(uri, "s3://"):
		return NewS3Storage(ctx, strings.TrimPrefix(uri, "s3://"), cfg, log)
	case strings.HasPrefix(uri, "az://"):
		return NewAzureStorage(ctx, strings.TrimPrefix(uri, "az://"), cfg, log)
	default:
		return NewLocalFSStorage(uri, log)
	}
}
