package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

var testSecret = []byte("test-secret")

func TestToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken("alice", TokenKindAccess, testSecret, time.Minute)
	require.NoError(t, err)

	username, err := ParseToken(token, TokenKindAccess, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestToken_KindMismatchRejected(t *testing.T) {
	token, err := GenerateToken("alice", TokenKindRefresh, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, TokenKindAccess, testSecret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	token, err := GenerateToken("alice", TokenKindAccess, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, TokenKindAccess, testSecret)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestToken_WrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("alice", TokenKindAccess, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, TokenKindAccess, []byte("other-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
