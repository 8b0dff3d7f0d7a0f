package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// LocalFSStorage implements FileSystem over a directory on local disk.
// It needs no chunking: multipart sessions degrade to a plain copy.
type LocalFSStorage struct {
	root string
	log  logging.Logger
}

func NewLocalFSStorage(root string, log logging.Logger) (*LocalFSStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, common.NewStorageError("init", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, common.NewStorageError("init", abs, err)
	}
	return &LocalFSStorage{root: abs, log: log}, nil
}

func (s *LocalFSStorage) Name() string { return "local" }

func (s *LocalFSStorage) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(relativePath(filepath.Base(s.root), p)))
}

func (s *LocalFSStorage) Find(ctx context.Context, path string) ([]string, error) {
	root := s.abs(path)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.NewStorageError("find", path, err)
	}
	if !info.IsDir() {
		return []string{relativePath(filepath.Base(s.root), path)}, nil
	}
	files, err := walkLocalFiles(root)
	if err != nil {
		return nil, err
	}
	base := relativePath(filepath.Base(s.root), path)
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, joinKey(base, f))
	}
	return out, nil
}

func (s *LocalFSStorage) FindInfo(ctx context.Context, path string) ([]FileInfo, error) {
	names, err := s.Find(ctx, path)
	if err != nil {
		return nil, err
	}
	infos := make([]FileInfo, 0, len(names))
	for _, name := range names {
		st, err := os.Stat(s.abs(name))
		if err != nil {
			return nil, common.NewStorageError("stat", name, err)
		}
		infos = append(infos, FileInfo{
			Name:       name,
			Size:       st.Size(),
			Created:    st.ModTime(),
			Suffix:     suffixOf(name),
			ObjectType: ObjectTypeFile,
		})
	}
	return infos, nil
}

func (s *LocalFSStorage) Get(ctx context.Context, local, remote string, recursive bool) error {
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
		base := relativePath(filepath.Base(s.root), remote)
		for _, f := range files {
			rel := relativePath(base, f)
			if err := s.copyFile(s.abs(f), filepath.Join(local, filepath.FromSlash(rel))); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.copyFile(s.abs(remote), local)
}

func (s *LocalFSStorage) Put(ctx context.Context, local, remote string, recursive bool) error {
	if recursive {
		if err := validateLocalDir(local); err != nil {
			return err
		}
		files, err := walkLocalFiles(local)
		if err != nil {
			return err
		}
		for _, f := range files {
			src := filepath.Join(local, filepath.FromSlash(f))
			if err := s.copyFile(src, s.abs(joinKey(relativePath(filepath.Base(s.root), remote), f))); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validateSingle(local, remote); err != nil {
		return err
	}
	return s.copyFile(local, s.abs(remote))
}

func (s *LocalFSStorage) Copy(ctx context.Context, src, dest string, recursive bool) error {
	if recursive {
		files, err := s.Find(ctx, src)
		if err != nil {
			return err
		}
		base := relativePath(filepath.Base(s.root), src)
		destBase := relativePath(filepath.Base(s.root), dest)
		for _, f := range files {
			rel := relativePath(base, f)
			if err := s.copyFile(s.abs(f), s.abs(joinKey(destBase, rel))); err != nil {
				return err
			}
		}
		return nil
	}
	return s.copyFile(s.abs(src), s.abs(dest))
}

func (s *LocalFSStorage) Rm(ctx context.Context, path string, recursive bool) error {
	target := s.abs(path)
	var err error
	if recursive {
		err = os.RemoveAll(target)
	} else {
		err = os.Remove(target)
		if os.IsNotExist(err) {
			err = nil
		}
	}
	if err != nil {
		return common.NewStorageError("rm", path, err)
	}
	return nil
}

func (s *LocalFSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, common.NewStorageError("exists", path, err)
}

// GeneratePresignedURL returns the absolute file path; local objects need no
// signing.
func (s *LocalFSStorage) GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return s.abs(path), nil
}

func (s *LocalFSStorage) CreateMultipartUpload(ctx context.Context, path string) (MultiPartUploader, error) {
	return &localMultipart{storage: s, dest: path}, nil
}

func (s *LocalFSStorage) copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return common.NewStorageError("copy", src, err)
	}
	defer in.Close()

	if err := ensureParentDir(dest); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return common.NewStorageError("copy", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return common.NewStorageError("copy", dest, err)
	}
	return out.Close()
}

// localMultipart satisfies MultiPartUploader for local disk, where chunking
// buys nothing: the session token is the destination path and the upload is
// a plain copy.
type localMultipart struct {
	storage *LocalFSStorage
	dest    string
}

func (m *localMultipart) SessionURL() string { return m.storage.abs(m.dest) }

func (m *localMultipart) UploadFileInChunks(ctx context.Context, localPath string) error {
	return m.storage.copyFile(localPath, m.storage.abs(m.dest))
}
