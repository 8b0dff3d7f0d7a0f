// Package server wires the registry server: HTTP handlers over the card
// registries and the storage backend, token-based auth, and application
// bootstrap with graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/cardkeeper/internal/api"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
	"github.com/dmitrijs2005/cardkeeper/internal/registry"
	"github.com/dmitrijs2005/cardkeeper/internal/semver"
	"github.com/dmitrijs2005/cardkeeper/internal/sqlstore"
	"github.com/dmitrijs2005/cardkeeper/internal/storage"
)

// Server holds one registry per card kind plus the shared store and
// filesystem. It is the http.Handler factory for the whole API.
type Server struct {
	cfg        *config.Config
	log        logging.Logger
	store      *sqlstore.Store
	fs         storage.FileSystem
	registries map[models.RegistryType]*registry.ServerCardRegistry
}

func NewServer(cfg *config.Config, store *sqlstore.Store, fs storage.FileSystem, log logging.Logger) (*Server, error) {
	registries := make(map[models.RegistryType]*registry.ServerCardRegistry, len(models.AllRegistryTypes))
	for _, rt := range models.AllRegistryTypes {
		r, err := registry.NewServerCardRegistry(rt, store, fs, cfg, log)
		if err != nil {
			return nil, err
		}
		registries[rt] = r
	}
	return &Server{cfg: cfg, log: log, store: store, fs: fs, registries: registries}, nil
}

// Handler builds the route table with logging and auth middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+api.RouteHealthcheck, s.handleHealthcheck)
	mux.HandleFunc("POST "+api.RouteAuthLogin, s.handleLogin)
	mux.HandleFunc("POST "+api.RouteAuthRefresh, s.handleRefresh)

	mux.HandleFunc("GET "+api.RouteCardCheck, s.auth(s.handleCardCheck))
	mux.HandleFunc("POST "+api.RouteCardCreate, s.auth(s.handleCardCreate))
	mux.HandleFunc("POST "+api.RouteCardUpdate, s.auth(s.handleCardUpdate))
	mux.HandleFunc("POST "+api.RouteCardDelete, s.auth(s.handleCardDelete))
	mux.HandleFunc("POST "+api.RouteCardList, s.auth(s.handleCardList))
	mux.HandleFunc("POST "+api.RouteCardVersion, s.auth(s.handleCardVersion))
	mux.HandleFunc("POST "+api.RouteCardVersions, s.auth(s.handleCardVersions))
	mux.HandleFunc("GET "+api.RouteCardKey, s.auth(s.handleCardKey))
	mux.HandleFunc("GET "+api.RouteCardRepositories, s.auth(s.handleRepositories))
	mux.HandleFunc("POST "+api.RouteRegistryPage, s.auth(s.handleRegistryPage))
	mux.HandleFunc("GET "+api.RouteRegistryStats, s.auth(s.handleRegistryStats))

	mux.HandleFunc("GET "+api.RouteFilesList, s.auth(s.handleFilesList))
	mux.HandleFunc("GET "+api.RouteFilesInfo, s.auth(s.handleFilesInfo))
	mux.HandleFunc("GET "+api.RouteFilesExists, s.auth(s.handleFilesExists))
	mux.HandleFunc("GET "+api.RouteFilesContent, s.auth(s.handleFilesContent))
	mux.HandleFunc("POST "+api.RouteFilesMultipart, s.auth(s.handleFilesMultipart))
	mux.HandleFunc("GET "+api.RouteFilesPresigned, s.auth(s.handleFilesPresigned))
	mux.HandleFunc("POST "+api.RouteFilesCopy, s.auth(s.handleFilesCopy))
	mux.HandleFunc("POST "+api.RouteFilesDelete, s.auth(s.handleFilesDelete))

	return s.logRequests(mux)
}

// registryFor resolves the registry named in the request, or fails the
// request with 400.
func (s *Server) registryFor(w http.ResponseWriter, rt models.RegistryType) (*registry.ServerCardRegistry, bool) {
	r, ok := s.registries[rt]
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("unknown registry type"))
		return nil, false
	}
	return r, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(context.Background(), "response encode failed", "error", err.Error())
	}
}

// writeError maps sentinel errors to HTTP statuses when the caller passes 0.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var verr *common.VersionError
	switch {
	case errors.Is(err, common.ErrCardNotFound),
		errors.Is(err, common.ErrArtifactKeyNotFound),
		errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUIDCollision):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidUID),
		errors.Is(err, common.ErrRegistryTypeMismatch),
		errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthcheckResponse{Alive: true})
}

func (s *Server) handleCardCheck(w http.ResponseWriter, r *http.Request) {
	rt := models.RegistryType(r.URL.Query().Get("registry_type"))
	reg, ok := s.registryFor(w, rt)
	if !ok {
		return
	}
	exists, err := reg.CheckUIDExists(r.Context(), r.URL.Query().Get("uid"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UIDResponse{Exists: exists})
}

func (s *Server) handleCardCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCardRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.Card.Type)
	if !ok {
		return
	}
	resp, err := reg.CreateCard(r.Context(), &req)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCardUpdate(w http.ResponseWriter, r *http.Request) {
	var card models.Card
	if err := decodeBody(r, &card); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, card.Type)
	if !ok {
		return
	}
	if err := reg.UpdateCard(r.Context(), &card); err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UpdateCardResponse{Updated: true})
}

func (s *Server) handleCardDelete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteCardRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.RegistryType)
	if !ok {
		return
	}
	if err := reg.DeleteCard(r.Context(), req.UID); err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteCardResponse{Deleted: true})
}

func (s *Server) handleCardList(w http.ResponseWriter, r *http.Request) {
	var req api.ListCardsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.RegistryType)
	if !ok {
		return
	}
	cards, err := reg.ListCards(r.Context(), req.Args)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListCardsResponse{Cards: cards})
}

func (s *Server) handleCardVersion(w http.ResponseWriter, r *http.Request) {
	var req api.NextVersionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.RegistryType)
	if !ok {
		return
	}
	kind, err := semver.ParseBumpKind(req.VersionType)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	version, err := reg.NextVersion(r.Context(), req.Space, req.Name, req.Version, kind, req.PreTag, req.BuildTag)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NextVersionResponse{Version: version})
}

func (s *Server) handleCardVersions(w http.ResponseWriter, r *http.Request) {
	var req api.VersionsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.RegistryType)
	if !ok {
		return
	}
	versions, err := reg.Versions(r.Context(), req.Space, req.Name, req.Version)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VersionsResponse{Versions: versions})
}

func (s *Server) handleCardKey(w http.ResponseWriter, r *http.Request) {
	rt := models.RegistryType(r.URL.Query().Get("registry_type"))
	reg, ok := s.registryFor(w, rt)
	if !ok {
		return
	}
	key, err := reg.ArtifactKey(r.Context(), r.URL.Query().Get("uid"))
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	rt := models.RegistryType(r.URL.Query().Get("registry_type"))
	reg, ok := s.registryFor(w, rt)
	if !ok {
		return
	}
	spaces, err := reg.Spaces(r.Context())
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RepositoriesResponse{Spaces: spaces})
}

func (s *Server) handleRegistryPage(w http.ResponseWriter, r *http.Request) {
	var req models.RegistryPageRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, ok := s.registryFor(w, req.RegistryType)
	if !ok {
		return
	}
	entries, err := reg.Page(r.Context(), req)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RegistryPageResponse{Entries: entries, Page: req.Page})
}

func (s *Server) handleRegistryStats(w http.ResponseWriter, r *http.Request) {
	rt := models.RegistryType(r.URL.Query().Get("registry_type"))
	reg, ok := s.registryFor(w, rt)
	if !ok {
		return
	}
	stats, err := reg.Stats(r.Context())
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func parseBoolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
