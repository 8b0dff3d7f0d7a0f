package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cardkeeper/internal/api"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/cryptox"
)

// auth wraps a handler with bearer-token validation. With auth disabled in
// the config every request passes through.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AuthEnabled {
			next(w, r)
			return
		}

		header := r.Header.Get(common.AuthorizationHeader)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			s.writeError(w, http.StatusUnauthorized, common.ErrUnauthorized)
			return
		}
		token := strings.TrimPrefix(header, common.BearerPrefix)

		// a static prod token bypasses the JWT path for automation
		if s.cfg.ProdToken != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ProdToken)) == 1 {
			next(w, r)
			return
		}

		if _, err := api.ParseToken(token, api.TokenKindAccess, []byte(s.cfg.EncryptSecret)); err != nil {
			s.writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r)
	}
}

// handleLogin exchanges credentials for a token pair. Accounts live in the
// users table; the configured bootstrap credentials work before any account
// exists.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.verifyCredentials(r, req) {
		s.writeError(w, http.StatusUnauthorized, common.ErrUnauthorized)
		return
	}

	pair, err := s.issueTokens(req.Username)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *Server) verifyCredentials(r *http.Request, req api.LoginRequest) bool {
	user, err := s.store.GetUser(r.Context(), req.Username)
	if err == nil {
		return cryptox.VerifyPassword(req.Password, user.PasswordHash)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false
	}
	// bootstrap account from the config
	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) == 1
	return usernameOK && passwordOK
}

// handleRefresh exchanges a valid refresh token for a fresh pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	username, err := api.ParseToken(req.RefreshToken, api.TokenKindRefresh, []byte(s.cfg.EncryptSecret))
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			s.writeError(w, http.StatusUnauthorized, common.ErrRefreshTokenExpired)
			return
		}
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	pair, err := s.issueTokens(username)
	if err != nil {
		s.writeError(w, 0, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *Server) issueTokens(username string) (*api.TokenPair, error) {
	secret := []byte(s.cfg.EncryptSecret)
	access, err := api.GenerateToken(username, api.TokenKindAccess, secret, s.cfg.AccessTokenValidity)
	if err != nil {
		return nil, err
	}
	refresh, err := api.GenerateToken(username, api.TokenKindRefresh, secret, s.cfg.RefreshTokenValidity)
	if err != nil {
		return nil, err
	}
	return &api.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
