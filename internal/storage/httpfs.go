package storage

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/api"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// HTTPStorageClient implements FileSystem by proxying every operation
// through a registry server's file routes. It is what client-mode processes
// use: they never hold cloud credentials, the server's backend does the real
// work.
type HTTPStorageClient struct {
	client *api.Client
	log    logging.Logger
}

func NewHTTPStorageClient(client *api.Client, log logging.Logger) *HTTPStorageClient {
	return &HTTPStorageClient{client: client, log: log}
}

func (s *HTTPStorageClient) Name() string { return "proxy" }

func (s *HTTPStorageClient) Find(ctx context.Context, p string) ([]string, error) {
	return s.client.ListFiles(ctx, p)
}

func (s *HTTPStorageClient) FindInfo(ctx context.Context, p string) ([]FileInfo, error) {
	return s.client.ListFileInfo(ctx, p)
}

func (s *HTTPStorageClient) Get(ctx context.Context, local, remote string, recursive bool) error {
	if !recursive {
		if err := validateSingle(local, remote); err != nil {
			return err
		}
		return s.client.DownloadFile(ctx, local, remote)
	}

	files, err := s.client.ListFiles(ctx, remote)
	if err != nil {
		return err
	}
	for _, f := range files {
		rel := strings.TrimPrefix(strings.TrimPrefix(f, remote), "/")
		dest := filepath.Join(local, filepath.FromSlash(rel))
		if err := s.client.DownloadFile(ctx, dest, f); err != nil {
			return common.NewStorageError("get", f, err)
		}
	}
	return nil
}

func (s *HTTPStorageClient) Put(ctx context.Context, local, remote string, recursive bool) error {
	if !recursive {
		if err := validateSingle(local, remote); err != nil {
			return err
		}
		return s.client.UploadFile(ctx, local, remote)
	}

	if err := validateLocalDir(local); err != nil {
		return err
	}
	files, err := walkLocalFiles(local)
	if err != nil {
		return err
	}
	for _, rel := range files {
		src := filepath.Join(local, filepath.FromSlash(rel))
		dest := path.Join(remote, rel)
		if err := s.client.UploadFile(ctx, src, dest); err != nil {
			return common.NewStorageError("put", dest, err)
		}
	}
	return nil
}

func (s *HTTPStorageClient) Copy(ctx context.Context, src, dest string, recursive bool) error {
	return s.client.CopyFile(ctx, src, dest, recursive)
}

func (s *HTTPStorageClient) Rm(ctx context.Context, p string, recursive bool) error {
	return s.client.DeleteFile(ctx, p, recursive)
}

func (s *HTTPStorageClient) Exists(ctx context.Context, p string) (bool, error) {
	return s.client.FileExists(ctx, p)
}

func (s *HTTPStorageClient) GeneratePresignedURL(ctx context.Context, p string, _ time.Duration) (string, error) {
	return s.client.PresignedURL(ctx, p)
}

// CreateMultipartUpload returns an uploader that streams through the
// server's multipart route. The server-side backend does the real chunking,
// so the session token here is just the destination path.
func (s *HTTPStorageClient) CreateMultipartUpload(ctx context.Context, p string) (MultiPartUploader, error) {
	return &httpMultipart{client: s.client, remote: p}, nil
}

type httpMultipart struct {
	client *api.Client
	remote string
}

func (m *httpMultipart) SessionURL() string { return m.remote }

func (m *httpMultipart) UploadFileInChunks(ctx context.Context, localPath string) error {
	return m.client.UploadFile(ctx, localPath, m.remote)
}
