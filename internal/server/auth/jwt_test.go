package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("owner1", secret, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ownerID, err := GetOwnerIDFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "owner1", ownerID)
}

func TestExpiredTokenRejected(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("owner1", secret, -time.Minute)
	require.NoError(t, err)

	_, err = GetOwnerIDFromToken(token, secret)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("owner1", []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = GetOwnerIDFromToken(token, []byte("wrong"))
	assert.Error(t, err)
}

func TestEmptyOwnerRejected(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("", secret, time.Minute)
	require.NoError(t, err)

	_, err = GetOwnerIDFromToken(token, secret)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := GetOwnerIDFromToken("not-a-token", []byte("secret"))
	assert.Error(t, err)
}
