package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
)

// requestAttempts bounds how many times a request is retried. Between
// attempts the client refreshes its tokens, so an expired access token costs
// one retry, not a failure.
const requestAttempts = 3

const requestTimeout = 30 * time.Second

// Client talks to a registry server. It is safe for concurrent use; token
// refresh is serialized internally.
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	log        logging.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewClient builds a client from the tracking URI and credentials. With an
// empty username the client runs unauthenticated and token refresh is a
// no-op.
func NewClient(cfg *config.Config, log logging.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.TrackingURI, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		username:   cfg.Username,
		password:   cfg.Password,
		log:        log,
	}
}

// Login exchanges the configured credentials for a token pair.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return nil
	}
	var pair TokenPair
	err := c.doOnce(ctx, http.MethodPost, RouteAuthLogin, nil,
		LoginRequest{Username: c.username, Password: c.password}, &pair, false)
	if err != nil {
		return err
	}
	c.setTokens(pair)
	return nil
}

// RefreshTokens exchanges the refresh token for a fresh pair, falling back
// to a full login when the refresh token itself is rejected.
func (c *Client) RefreshTokens(ctx context.Context) error {
	if c.username == "" {
		return nil
	}
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return c.Login(ctx)
	}

	var pair TokenPair
	err := c.doOnce(ctx, http.MethodPost, RouteAuthRefresh, nil,
		RefreshRequest{RefreshToken: refresh}, &pair, false)
	if err != nil {
		return c.Login(ctx)
	}
	c.setTokens(pair)
	return nil
}

func (c *Client) setTokens(pair TokenPair) {
	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()
}

// RequestWithRetry performs a JSON request with up to requestAttempts
// attempts. Every failed attempt triggers a token refresh before the error is
// retried or returned, so full exhaustion refreshes once per attempt. A
// refresh failure aborts the loop immediately rather than consuming an
// attempt.
func (c *Client) RequestWithRetry(ctx context.Context, method, route string, query url.Values, body, out any) error {
	var lastErr error
	for attempt := 0; attempt < requestAttempts; attempt++ {
		err := c.doOnce(ctx, method, route, query, body, out, true)
		if err == nil {
			return nil
		}
		lastErr = err
		if err := c.RefreshTokens(ctx); err != nil {
			return fmt.Errorf("token refresh: %w", err)
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", requestAttempts, lastErr)
}

// doOnce performs a single JSON round trip.
func (c *Client) doOnce(ctx context.Context, method, route string, query url.Values, body, out any, withAuth bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(route, query), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth {
		c.authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) buildURL(route string, query url.Values) string {
	u := c.baseURL + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrUnauthorized
	}
	var apiErr ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// Healthcheck pings the server.
func (c *Client) Healthcheck(ctx context.Context) error {
	var out HealthcheckResponse
	return c.RequestWithRetry(ctx, http.MethodGet, RouteHealthcheck, nil, nil, &out)
}

// CheckUIDExists asks whether a card uid is registered.
func (c *Client) CheckUIDExists(ctx context.Context, rt models.RegistryType, uid string) (bool, error) {
	q := url.Values{"uid": {uid}, "registry_type": {string(rt)}}
	var out UIDResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteCardCheck, q, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// CreateCard registers a card.
func (c *Client) CreateCard(ctx context.Context, req *models.CreateCardRequest) (*models.CreateCardResponse, error) {
	var out models.CreateCardResponse
	if err := c.RequestWithRetry(ctx, http.MethodPost, RouteCardCreate, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCard overwrites a card row.
func (c *Client) UpdateCard(ctx context.Context, card *models.Card) error {
	var out UpdateCardResponse
	return c.RequestWithRetry(ctx, http.MethodPost, RouteCardUpdate, nil, card, &out)
}

// DeleteCard removes a card, its key, and its blobs.
func (c *Client) DeleteCard(ctx context.Context, req *models.DeleteCardRequest) error {
	var out DeleteCardResponse
	return c.RequestWithRetry(ctx, http.MethodPost, RouteCardDelete, nil, req, &out)
}

// ListCards searches a registry.
func (c *Client) ListCards(ctx context.Context, rt models.RegistryType, args models.CardQueryArgs) ([]models.Card, error) {
	var out ListCardsResponse
	req := ListCardsRequest{RegistryType: rt, Args: args}
	if err := c.RequestWithRetry(ctx, http.MethodPost, RouteCardList, nil, req, &out); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// NextVersion asks what the next version in a lineage would be.
func (c *Client) NextVersion(ctx context.Context, req NextVersionRequest) (string, error) {
	var out NextVersionResponse
	if err := c.RequestWithRetry(ctx, http.MethodPost, RouteCardVersion, nil, req, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Versions lists a lineage's versions, newest first.
func (c *Client) Versions(ctx context.Context, req VersionsRequest) ([]string, error) {
	var out VersionsResponse
	if err := c.RequestWithRetry(ctx, http.MethodPost, RouteCardVersions, nil, req, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// ArtifactKey fetches a card's wrapped artifact key.
func (c *Client) ArtifactKey(ctx context.Context, rt models.RegistryType, uid string) (*models.ArtifactKey, error) {
	q := url.Values{"uid": {uid}, "registry_type": {string(rt)}}
	var out models.ArtifactKey
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteCardKey, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Repositories lists the spaces of a registry.
func (c *Client) Repositories(ctx context.Context, rt models.RegistryType) ([]string, error) {
	q := url.Values{"registry_type": {string(rt)}}
	var out RepositoriesResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteCardRepositories, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Spaces, nil
}

// RegistryPage fetches one page of a registry listing.
func (c *Client) RegistryPage(ctx context.Context, req models.RegistryPageRequest) ([]models.RegistryPageEntry, error) {
	var out RegistryPageResponse
	if err := c.RequestWithRetry(ctx, http.MethodPost, RouteRegistryPage, nil, req, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// RegistryStats summarizes a registry.
func (c *Client) RegistryStats(ctx context.Context, rt models.RegistryType) (*models.RegistryStats, error) {
	q := url.Values{"registry_type": {string(rt)}}
	var out models.RegistryStats
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteRegistryStats, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFiles names the objects under a remote path.
func (c *Client) ListFiles(ctx context.Context, path string) ([]string, error) {
	q := url.Values{"path": {path}}
	var out FileListResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteFilesList, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// ListFileInfo describes the objects under a remote path.
func (c *Client) ListFileInfo(ctx context.Context, path string) ([]models.FileInfo, error) {
	q := url.Values{"path": {path}}
	var out FileInfoResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteFilesInfo, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// FileExists reports whether an object or prefix exists.
func (c *Client) FileExists(ctx context.Context, path string) (bool, error) {
	q := url.Values{"path": {path}}
	var out FileExistsResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteFilesExists, q, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// CopyFile duplicates an object or tree within the server's backend.
func (c *Client) CopyFile(ctx context.Context, src, dest string, recursive bool) error {
	q := url.Values{"src": {src}, "dest": {dest}, "recursive": {strconv.FormatBool(recursive)}}
	var out CopyFileResponse
	return c.RequestWithRetry(ctx, http.MethodPost, RouteFilesCopy, q, nil, &out)
}

// DeleteFile removes an object, or a whole tree with recursive.
func (c *Client) DeleteFile(ctx context.Context, path string, recursive bool) error {
	q := url.Values{"path": {path}, "recursive": {strconv.FormatBool(recursive)}}
	var out DeleteFileResponse
	return c.RequestWithRetry(ctx, http.MethodPost, RouteFilesDelete, q, nil, &out)
}

// PresignedURL asks the server for a presigned URL for the path.
func (c *Client) PresignedURL(ctx context.Context, path string) (string, error) {
	q := url.Values{"path": {path}}
	var out PresignedResponse
	if err := c.RequestWithRetry(ctx, http.MethodGet, RouteFilesPresigned, q, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// DownloadFile streams a remote object through the server to a local file.
func (c *Client) DownloadFile(ctx context.Context, localPath, remotePath string) error {
	q := url.Values{"path": {remotePath}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(RouteFilesContent, q), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return f.Sync()
}

// UploadFile streams a local file to the server's multipart route, which
// forwards it to the configured backend under the remote path.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) error {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		f, err := os.Open(localPath)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		defer f.Close()
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	q := url.Values{"path": {remotePath}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(RouteFilesMultipart, q), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}
