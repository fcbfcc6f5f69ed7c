package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "warden/pkg/domain-errors"
)

var tokenService = NewTokenService("test-signing-key", "test-issuer")

func TestGenerateAndValidate(t *testing.T) {
	token, err := tokenService.Generate("alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokenService.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateRequiresSubject(t *testing.T) {
	_, err := tokenService.Generate("", time.Hour)
	require.Error(t, err)
	assert.Equal(t, derrors.CodeInvalidInput, derrors.CodeOf(err))
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := tokenService.Validate("not-a-token")
	require.Error(t, err)
	assert.Equal(t, derrors.CodeUnauthorized, derrors.CodeOf(err))
}

func TestValidateRejectsExpired(t *testing.T) {
	token, err := tokenService.Generate("alice", -time.Hour)
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.Error(t, err)
	assert.Equal(t, derrors.CodeUnauthorized, derrors.CodeOf(err))
}

func TestValidateRejectsForeignKey(t *testing.T) {
	other := NewTokenService("different-key", "test-issuer")
	token, err := other.Generate("mallory", time.Hour)
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.Error(t, err)
}
