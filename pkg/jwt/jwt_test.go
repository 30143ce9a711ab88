package jwt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/pkg/errcode"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken("user-1", "alice", secret, 1)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserId)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "parley", claims.Issuer)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "alice", "secret-a", 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret-b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrTokenInvalid))
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not-a-token", "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.ErrTokenInvalid))
}

func TestParseToken_ExpiredToken(t *testing.T) {
	// negative expiry puts the token in the past
	token, err := GenerateToken("user-1", "alice", "secret", -1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	require.Error(t, err)
}
