package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// TokenKind distinguishes access from refresh tokens so one cannot be
// replayed as the other.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims carries the username and token kind beside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string    `json:"username"`
	Kind     TokenKind `json:"kind"`
}

// GenerateToken signs an HS256 token for the user.
func GenerateToken(username string, kind TokenKind, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Username: username,
		Kind:     kind,
	})
	return token.SignedString(secretKey)
}

// ParseToken validates a token of the expected kind and returns the username
// it was issued to.
func ParseToken(tokenString string, kind TokenKind, secretKey []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.Kind != kind {
		return "", common.ErrInvalidToken
	}
	return claims.Username, nil
}
