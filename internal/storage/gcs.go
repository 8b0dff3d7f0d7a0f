package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// GCSStorage implements FileSystem over a Google Cloud Storage bucket.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
	log    logging.Logger
}

func NewGCSStorage(ctx context.Context, uri string, log logging.Logger) (*GCSStorage, error) {
	bucket, prefix := splitBucket(uri)

	// uses application default credentials
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, common.NewStorageError("init", uri, err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix, log: log}, nil
}

func (s *GCSStorage) Name() string { return "google" }

func (s *GCSStorage) key(p string) string {
	return joinKey(s.prefix, relativePath(s.bucket, p))
}

func (s *GCSStorage) object(p string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.key(p))
}

func (s *GCSStorage) Find(ctx context.Context, path string) ([]string, error) {
	infos, err := s.FindInfo(ctx, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

func (s *GCSStorage) FindInfo(ctx context.Context, path string) ([]FileInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: s.key(path)})

	var infos []FileInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, common.NewStorageError("find", path, err)
		}
		name := attrs.Name
		if s.prefix != "" {
			name = relativePath(s.prefix, name)
		}
		infos = append(infos, FileInfo{
			Name:       name,
			Size:       attrs.Size,
			Created:    attrs.Created,
			Suffix:     suffixOf(name),
			ObjectType: ObjectTypeFile,
		})
	}
	return infos, nil
}

func (s *GCSStorage) Get(ctx context.Context, local, remote string, recursive bool) error {
	if recursive {
		if err := os.MkdirAll(local, 0o750); err != nil {
			return common.NewStorageError("get", local, err)
		}
		if err := validateLocalDir(local); err != nil {
			return err
		}
		files, err := s.Find(ctx, remote)
		if err != nil {
			return err
		}
		base := relativePath(s.bucket, remote)
		for _, f := range files {
			rel := relativePath(base, f)
			if err := s.getObject(ctx, filepath.Join(local, filepath.FromSlash(rel)), f); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.getObject(ctx, local, remote)
}

func (s *GCSStorage) getObject(ctx context.Context, local, remote string) error {
	r, err := s.object(remote).NewReader(ctx)
	if err != nil {
		return common.NewStorageError("get", remote, err)
	}
	defer r.Close()

	if err := ensureParentDir(local); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return common.NewStorageError("get", local, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return common.NewStorageError("get", local, err)
	}
	return nil
}

func (s *GCSStorage) Put(ctx context.Context, local, remote string, recursive bool) error {
	if recursive {
		if err := validateLocalDir(local); err != nil {
			return err
		}
		files, err := walkLocalFiles(local)
		if err != nil {
			return err
		}
		base := relativePath(s.bucket, remote)
		for _, f := range files {
			src := filepath.Join(local, filepath.FromSlash(f))
			if err := s.putObject(ctx, src, joinKey(base, f)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.putObject(ctx, local, remote)
}

func (s *GCSStorage) putObject(ctx context.Context, local, remote string) error {
	uploader, err := s.CreateMultipartUpload(ctx, remote)
	if err != nil {
		return err
	}
	return uploader.UploadFileInChunks(ctx, local)
}

func (s *GCSStorage) Copy(ctx context.Context, src, dest string, recursive bool) error {
	copyOne := func(from, to string) error {
		_, err := s.object(to).CopierFrom(s.object(from)).Run(ctx)
		if err != nil {
			return common.NewStorageError("copy", from, err)
		}
		return nil
	}

	if !recursive {
		return copyOne(src, dest)
	}
	files, err := s.Find(ctx, src)
	if err != nil {
		return err
	}
	base := relativePath(s.bucket, src)
	destBase := relativePath(s.bucket, dest)
	for _, f := range files {
		rel := relativePath(base, f)
		if err := copyOne(f, joinKey(destBase, rel)); err != nil {
			return err
		}
	}
	return nil
}

func (s *GCSStorage) Rm(ctx context.Context, path string, recursive bool) error {
	rmOne := func(p string) error {
		err := s.object(p).Delete(ctx)
		if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return common.NewStorageError("rm", p, err)
		}
		return nil
	}

	if !recursive {
		return rmOne(path)
	}
	files, err := s.Find(ctx, path)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := rmOne(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.object(path).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gcs.ErrObjectNotExist) {
		return false, common.NewStorageError("exists", path, err)
	}

	files, ferr := s.Find(ctx, path)
	if ferr != nil {
		return false, ferr
	}
	return len(files) > 0, nil
}

func (s *GCSStorage) GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(s.key(path), &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", common.NewStorageError("presign", path, err)
	}
	return url, nil
}

func (s *GCSStorage) CreateMultipartUpload(ctx context.Context, path string) (MultiPartUploader, error) {
	return &gcsMultipart{storage: s, remote: path}, nil
}

// gcsMultipart drives a GCS resumable upload. The SDK writer owns the
// session: with ChunkSize set it issues one resumable-protocol request per
// chunk and finalizes with the total-length Content-Range on Close.
type gcsMultipart struct {
	storage *GCSStorage
	remote  string
}

// SessionURL returns the canonical resumable-upload endpoint for the object.
// The live session URL is held inside the SDK writer and is meaningful only
// to it.
func (m *gcsMultipart) SessionURL() string {
	return fmt.Sprintf(
		"https://storage.googleapis.com/upload/storage/v1/b/%s/o?uploadType=resumable&name=%s",
		m.storage.bucket, m.storage.key(m.remote),
	)
}

func (m *gcsMultipart) UploadFileInChunks(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return common.NewStorageError("multipart", localPath, err)
	}
	defer f.Close()

	w := m.storage.object(m.remote).NewWriter(ctx)
	w.ChunkSize = ChunkSize
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, f); err != nil {
		// closing a failed writer abandons the resumable session
		_ = w.Close()
		return common.NewStorageError("multipart", m.remote, err)
	}
	if err := w.Close(); err != nil {
		return common.NewStorageError("multipart", m.remote, err)
	}
	return nil
}
