package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/cardkeeper/internal/api"
	"github.com/dmitrijs2005/cardkeeper/internal/storage"
)

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	files, err := s.fs.Find(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: files})
}

func (s *Server) handleFilesInfo(w http.ResponseWriter, r *http.Request) {
	infos, err := s.fs.FindInfo(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileInfoResponse{Files: infos})
}

func (s *Server) handleFilesExists(w http.ResponseWriter, r *http.Request) {
	exists, err := s.fs.Exists(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileExistsResponse{Exists: exists})
}

// handleFilesContent streams one object to the caller through a temp file,
// reusing the backend's download path so every backend behaves identically.
func (s *Server) handleFilesContent(w http.ResponseWriter, r *http.Request) {
	remote := r.URL.Query().Get("path")
	if remote == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	tmp, err := os.CreateTemp("", "cardkeeper-dl-*"+filepath.Ext(remote))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := s.fs.Get(r.Context(), tmpPath, remote, false); err != nil {
		s.writeError(w, 0, err)
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		s.log.Error(r.Context(), "content stream interrupted", "path", remote, "error", err.Error())
	}
}

// handleFilesMultipart receives a multipart form upload and forwards it to
// the backend. Files larger than one chunk go through the backend's
// multipart session; the chunking decision is the backend's, not the
// client's.
func (s *Server) handleFilesMultipart(w http.ResponseWriter, r *http.Request) {
	remote := r.URL.Query().Get("path")
	if remote == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "cardkeeper-ul-*"+filepath.Ext(remote))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		s.writeError(w, 0, err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.writeError(w, 0, err)
		return
	}

	if err := s.fs.Put(r.Context(), tmpPath, remote, false); err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{Uploaded: true, Path: remote})
}

func (s *Server) handleFilesPresigned(w http.ResponseWriter, r *http.Request) {
	url, err := s.fs.GeneratePresignedURL(r.Context(), r.URL.Query().Get("path"), storage.DefaultPresignTTL)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PresignedResponse{URL: url, ExpiresIn: storage.DefaultPresignTTL})
}

func (s *Server) handleFilesCopy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := s.fs.Copy(r.Context(), q.Get("src"), q.Get("dest"), parseBoolParam(r, "recursive"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CopyFileResponse{Copied: true})
}

func (s *Server) handleFilesDelete(w http.ResponseWriter, r *http.Request) {
	err := s.fs.Rm(r.Context(), r.URL.Query().Get("path"), parseBoolParam(r, "recursive"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteFileResponse{Deleted: true})
}
