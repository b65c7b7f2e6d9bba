package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *TokenService {
	return NewTokenService("test-secret", 15*time.Minute, 24*time.Hour)
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := newTestService()

	access, refresh, expiresAt, err := svc.GenerateTokenPair("user-123", "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Greater(t, expiresAt, time.Now().Unix())

	claims, err := svc.ValidateToken(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestValidateTokenRejectsWrongType(t *testing.T) {
	svc := newTestService()

	_, refresh, _, err := svc.GenerateTokenPair("user-123", "user@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh, TokenTypeAccess)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewTokenService("other-secret", 15*time.Minute, 24*time.Hour)

	access, _, _, err := svc.GenerateTokenPair("user-123", "user@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(access, TokenTypeAccess)
	assert.Error(t, err)
}

func TestRefreshAccessToken(t *testing.T) {
	svc := newTestService()

	_, refresh, _, err := svc.GenerateTokenPair("user-123", "user@example.com")
	require.NoError(t, err)

	access, expiresAt, err := svc.RefreshAccessToken(refresh)
	require.NoError(t, err)
	assert.Greater(t, expiresAt, time.Now().Unix())

	claims, err := svc.ValidateToken(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService()

	access, _, _, err := svc.GenerateTokenPair("user-123", "user@example.com")
	require.NoError(t, err)

	_, _, err = svc.RefreshAccessToken(access)
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, CheckPasswordHash("wrong password", hash))
}
