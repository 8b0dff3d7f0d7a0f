package api

import (
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/models"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthcheckResponse reports server liveness.
type HealthcheckResponse struct {
	Alive bool `json:"alive"`
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UIDRequest addresses a single card.
type UIDRequest struct {
	UID          string              `json:"uid"`
	RegistryType models.RegistryType `json:"registry_type"`
}

// UIDResponse reports a uid existence check.
type UIDResponse struct {
	Exists bool `json:"exists"`
}

// ListCardsRequest searches one registry.
type ListCardsRequest struct {
	RegistryType models.RegistryType  `json:"registry_type"`
	Args         models.CardQueryArgs `json:"args"`
}

// ListCardsResponse returns matching cards.
type ListCardsResponse struct {
	Cards []models.Card `json:"cards"`
}

// UpdateCardResponse acknowledges a card update.
type UpdateCardResponse struct {
	Updated bool `json:"updated"`
}

// DeleteCardResponse acknowledges a card delete.
type DeleteCardResponse struct {
	Deleted bool `json:"deleted"`
}

// NextVersionRequest asks what version the next card in a lineage would get.
type NextVersionRequest struct {
	RegistryType models.RegistryType `json:"registry_type"`
	Space        string              `json:"space"`
	Name         string              `json:"name"`
	Version      string              `json:"version,omitempty"`
	VersionType  string              `json:"version_type,omitempty"`
	PreTag       string              `json:"pre_tag,omitempty"`
	BuildTag     string              `json:"build_tag,omitempty"`
}

// NextVersionResponse carries the computed version.
type NextVersionResponse struct {
	Version string `json:"version"`
}

// VersionsRequest lists a lineage's versions.
type VersionsRequest struct {
	RegistryType models.RegistryType `json:"registry_type"`
	Space        string              `json:"space"`
	Name         string              `json:"name"`
	Version      string              `json:"version,omitempty"`
}

// VersionsResponse carries the lineage's versions, newest first.
type VersionsResponse struct {
	Versions []string `json:"versions"`
}

// RepositoriesResponse lists the spaces of a registry.
type RepositoriesResponse struct {
	Spaces []string `json:"spaces"`
}

// RegistryPageResponse is one page of a registry listing.
type RegistryPageResponse struct {
	Entries []models.RegistryPageEntry `json:"entries"`
	Page    int                        `json:"page"`
}

// FileListResponse names the objects under a storage path.
type FileListResponse struct {
	Files []string `json:"files"`
}

// FileInfoResponse describes the objects under a storage path.
type FileInfoResponse struct {
	Files []models.FileInfo `json:"files"`
}

// FileExistsResponse reports object existence.
type FileExistsResponse struct {
	Exists bool `json:"exists"`
}

// UploadResponse acknowledges a proxied upload.
type UploadResponse struct {
	Uploaded bool   `json:"uploaded"`
	Path     string `json:"path"`
}

// PresignedResponse carries a presigned URL for direct blob access. For the
// local backend the value is a filesystem path usable only on the server
// host; proxy-mode clients should stream through the content route instead.
type PresignedResponse struct {
	URL       string        `json:"url"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// CopyFileResponse acknowledges a server-side copy.
type CopyFileResponse struct {
	Copied bool `json:"copied"`
}

// DeleteFileResponse acknowledges an object delete.
type DeleteFileResponse struct {
	Deleted bool `json:"deleted"`
}
