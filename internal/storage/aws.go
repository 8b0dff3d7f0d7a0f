package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// S3Storage implements FileSystem over an AWS S3 bucket (or any
// S3-compatible endpoint such as MinIO).
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	log     logging.Logger
}

func NewS3Storage(ctx context.Context, uri string, conf *config.Config, log logging.Logger) (*S3Storage, error) {
	bucket, prefix := splitBucket(uri)

	// Config-held static credentials keep an S3-compatible endpoint from
	// colliding with a real AWS profile on the same host.
	var loadOpts []func(*awsconfig.LoadOptions) error
	if conf.S3AccessKey != "" && conf.S3SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.S3AccessKey, conf.S3SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, common.NewStorageError("init", uri, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
		log:     log,
	}, nil
}

func (s *S3Storage) Name() string { return "aws" }

func (s *S3Storage) key(p string) string {
	return joinKey(s.prefix, relativePath(s.bucket, p))
}

func (s *S3Storage) Find(ctx context.Context, path string) ([]string, error) {
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

func (s *S3Storage) FindInfo(ctx context.Context, path string) ([]FileInfo, error) {
	prefix := s.key(path)
	var infos []FileInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.NewStorageError("find", path, err)
		}
		for _, obj := range page.Contents {
			name := relativePath("", aws.ToString(obj.Key))
			if s.prefix != "" {
				name = relativePath(s.prefix, name)
			}
			info := FileInfo{
				Name:       name,
				Size:       aws.ToInt64(obj.Size),
				Suffix:     suffixOf(name),
				ObjectType: ObjectTypeFile,
			}
			if obj.LastModified != nil {
				info.Created = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (s *S3Storage) Get(ctx context.Context, local, remote string, recursive bool) error {
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

func (s *S3Storage) getObject(ctx context.Context, local, remote string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remote)),
	})
	if err != nil {
		return common.NewStorageError("get", remote, err)
	}
	defer out.Body.Close()

	if err := ensureParentDir(local); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return common.NewStorageError("get", local, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return common.NewStorageError("get", local, err)
	}
	return nil
}

func (s *S3Storage) Put(ctx context.Context, local, remote string, recursive bool) error {
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

// putObject uploads one file, switching to a multipart session when the
// file exceeds a single chunk.
func (s *S3Storage) putObject(ctx context.Context, local, remote string) error {
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

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remote)),
		Body:   f,
	})
	if err != nil {
		return common.NewStorageError("put", remote, err)
	}
	return nil
}

func (s *S3Storage) Copy(ctx context.Context, src, dest string, recursive bool) error {
	copyOne := func(from, to string) error {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(s.bucket + "/" + s.key(from)),
			Key:        aws.String(s.key(to)),
		})
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

func (s *S3Storage) Rm(ctx context.Context, path string, recursive bool) error {
	if !recursive {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(path)),
		})
		if err != nil {
			return common.NewStorageError("rm", path, err)
		}
		return nil
	}

	files, err := s.Find(ctx, path)
	if err != nil {
		return err
	}
	for _, f := range files {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(f)),
		})
		if err != nil {
			return common.NewStorageError("rm", f, err)
		}
	}
	return nil
}

func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		return true, nil
	}

	// not an object; a prefix with at least one key under it still exists
	files, ferr := s.Find(ctx, path)
	if ferr != nil {
		return false, ferr
	}
	return len(files) > 0, nil
}

func (s *S3Storage) GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", common.NewStorageError("presign", path, err)
	}
	return req.URL, nil
}

func (s *S3Storage) CreateMultipartUpload(ctx context.Context, path string) (MultiPartUploader, error) {
	key := s.key(path)
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, common.NewStorageError("multipart", path, err)
	}
	return &s3Multipart{
		client:   s.client,
		bucket:   s.bucket,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
		log:      s.log,
	}, nil
}

// s3Multipart drives the S3 upload-id protocol: sequential UploadPart calls
// followed by CompleteMultipartUpload with the ordered part/ETag list.
type s3Multipart struct {
	client   *s3.Client
	bucket   string
	key      string
	uploadID string
	log      logging.Logger
}

// SessionURL returns the upload id identifying this session.
func (m *s3Multipart) SessionURL() string { return m.uploadID }

func (m *s3Multipart) UploadFileInChunks(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return common.NewStorageError("multipart", localPath, err)
	}
	defer f.Close()

	var completed []types.CompletedPart
	buf := make([]byte, ChunkSize)
	partNumber := int32(1)

	for {
		n, readErr := io.ReadFull(f, buf)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return m.abort(ctx, common.NewStorageError("multipart", localPath, readErr))
		}

		part, err := m.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(m.bucket),
			Key:        aws.String(m.key),
			UploadId:   aws.String(m.uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(buf[:n]),
		})
		if err != nil {
			return m.abort(ctx, common.NewStorageError("multipart", m.key, err))
		}

		completed = append(completed, types.CompletedPart{
			ETag:       part.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		partNumber++

		if errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
	}

	_, err = m.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return m.abort(ctx, common.NewStorageError("multipart", m.key, err))
	}
	return nil
}

func (m *s3Multipart) abort(ctx context.Context, cause error) error {
	_, err := m.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
	})
	if err != nil {
		return fmt.Errorf("%w (abort also failed: %v)", cause, err)
	}
	return cause
}
