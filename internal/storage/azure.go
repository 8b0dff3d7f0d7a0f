package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// AzureStorage implements FileSystem over an Azure Blob Storage container.
// The account name and key come from Config; a shared-key credential is
// required for SAS presigning.
type AzureStorage struct {
	client    *azblob.Client
	cred      *azblob.SharedKeyCredential
	account   string
	container string
	prefix    string
	log       logging.Logger
}

func NewAzureStorage(ctx context.Context, uri string, conf *config.Config, log logging.Logger) (*AzureStorage, error) {
	container, prefix := splitBucket(uri)

	account, key := conf.AzureStorageAccount, conf.AzureStorageKey
	if account == "" || key == "" {
		return nil, common.NewStorageError("init", uri,
			errors.New("azure storage account and key must be configured"))
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, common.NewStorageError("init", uri, err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, common.NewStorageError("init", uri, err)
	}

	return &AzureStorage{
		client:    client,
		cred:      cred,
		account:   account,
		container: container,
		prefix:    prefix,
		log:       log,
	}, nil
}

func (s *AzureStorage) Name() string { return "azure" }

func (s *AzureStorage) key(p string) string {
	return joinKey(s.prefix, relativePath(s.container, p))
}

func (s *AzureStorage) blockBlob(p string) *blockblob.Client {
	return s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlockBlobClient(s.key(p))
}

func (s *AzureStorage) Find(ctx context.Context, path string) ([]string, error) {
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

func (s *AzureStorage) FindInfo(ctx context.Context, path string) ([]FileInfo, error) {
	prefix := s.key(path)
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var infos []FileInfo
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, common.NewStorageError("find", path, err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			name := *blob.Name
			if s.prefix != "" {
				name = relativePath(s.prefix, name)
			}
			info := FileInfo{
				Name:       name,
				Suffix:     suffixOf(name),
				ObjectType: ObjectTypeFile,
			}
			if blob.Properties != nil {
				if blob.Properties.ContentLength != nil {
					info.Size = *blob.Properties.ContentLength
				}
				if blob.Properties.CreationTime != nil {
					info.Created = *blob.Properties.CreationTime
				}
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (s *AzureStorage) Get(ctx context.Context, local, remote string, recursive bool) error {
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
		base := relativePath(s.container, remote)
		for _, f := range files {
			rel := relativePath(base, f)
			if err := s.getBlob(ctx, filepath.Join(local, filepath.FromSlash(rel)), f); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.getBlob(ctx, local, remote)
}

func (s *AzureStorage) getBlob(ctx context.Context, local, remote string) error {
	resp, err := s.client.DownloadStream(ctx, s.container, s.key(remote), nil)
	if err != nil {
		return common.NewStorageError("get", remote, err)
	}
	defer resp.Body.Close()

	if err := ensureParentDir(local); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return common.NewStorageError("get", local, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return common.NewStorageError("get", local, err)
	}
	return nil
}

func (s *AzureStorage) Put(ctx context.Context, local, remote string, recursive bool) error {
	if recursive {
		if err := validateLocalDir(local); err != nil {
			return err
		}
		files, err := walkLocalFiles(local)
		if err != nil {
			return err
		}
		base := relativePath(s.container, remote)
		for _, f := range files {
			src := filepath.Join(local, filepath.FromSlash(f))
			if err := s.putBlob(ctx, src, joinKey(base, f)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.putBlob(ctx, local, remote)
}

func (s *AzureStorage) putBlob(ctx context.Context, local, remote string) error {
	info, err := os.Stat(local)
	if err != nil {
		return common.NewStorageError("put", local, err)
	}
	if info.Size() > ChunkSize {
		uploader, err := s.CreateMultipartUpload(ctx, remote)
		if err != nil {
			return err
		}
		return uploader.UploadFileInChunks(ctx, local)
	}

	f, err := os.Open(local)
	if err != nil {
		return common.NewStorageError("put", local, err)
	}
	defer f.Close()

	if _, err := s.client.UploadStream(ctx, s.container, s.key(remote), f, nil); err != nil {
		return common.NewStorageError("put", remote, err)
	}
	return nil
}

func (s *AzureStorage) Copy(ctx context.Context, src, dest string, recursive bool) error {
	copyOne := func(from, to string) error {
		srcURL := fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s",
			s.account, s.container, s.key(from))
		_, err := s.blockBlob(to).StartCopyFromURL(ctx, srcURL, nil)
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
	base := relativePath(s.container, src)
	destBase := relativePath(s.container, dest)
	for _, f := range files {
		rel := relativePath(base, f)
		if err := copyOne(f, joinKey(destBase, rel)); err != nil {
			return err
		}
	}
	return nil
}

func (s *AzureStorage) Rm(ctx context.Context, path string, recursive bool) error {
	rmOne := func(p string) error {
		_, err := s.client.DeleteBlob(ctx, s.container, s.key(p), nil)
		if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
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

func (s *AzureStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.blockBlob(path).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, common.NewStorageError("exists", path, err)
	}

	files, ferr := s.Find(ctx, path)
	if ferr != nil {
		return false, ferr
	}
	return len(files) > 0, nil
}

func (s *AzureStorage) GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	perms := sas.BlobPermissions{Read: true}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    time.Now().UTC().Add(ttl),
		ContainerName: s.container,
		BlobName:      s.key(path),
		Permissions:   perms.String(),
	}
	params, err := values.SignWithSharedKey(s.cred)
	if err != nil {
		return "", common.NewStorageError("presign", path, err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		s.account, s.container, s.key(path), params.Encode()), nil
}

func (s *AzureStorage) CreateMultipartUpload(ctx context.Context, path string) (MultiPartUploader, error) {
	return &azureMultipart{storage: s, remote: path}, nil
}

// azureMultipart drives the block-blob protocol: each chunk is staged as a
// block with a monotonically increasing base64 id, and the session finalizes
// with a commit of the accumulated block list in order.
type azureMultipart struct {
	storage *AzureStorage
	remote  string
}

// SessionURL returns a signed single-blob upload URL identifying the target.
func (m *azureMultipart) SessionURL() string {
	url, err := m.storage.GeneratePresignedURL(context.Background(), m.remote, DefaultPresignTTL)
	if err != nil {
		return m.storage.blockBlob(m.remote).URL()
	}
	return url
}

func (m *azureMultipart) UploadFileInChunks(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return common.NewStorageError("multipart", localPath, err)
	}
	defer f.Close()

	blobClient := m.storage.blockBlob(m.remote)

	var blockIDs []string
	buf := make([]byte, ChunkSize)
	index := 0

	for {
		n, readErr := io.ReadFull(f, buf)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return common.NewStorageError("multipart", localPath, readErr)
		}

		blockID := base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "block-%06d", index))
		body := streaming.NopCloser(bytes.NewReader(buf[:n]))
		if _, err := blobClient.StageBlock(ctx, blockID, body, nil); err != nil {
			return common.NewStorageError("multipart", m.remote, err)
		}
		blockIDs = append(blockIDs, blockID)
		index++

		if errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
	}

	if _, err := blobClient.CommitBlockList(ctx, blockIDs, nil); err != nil {
		return common.NewStorageError("multipart", m.remote, err)
	}
	return nil
}
