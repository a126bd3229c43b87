package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer")
	userID     = id.UserID(uuid.New())
)

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongKeyOrIssuer(t *testing.T) {
	other := NewJWTService("other-key", "test-issuer")
	token, err := other.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.Error(t, err)

	wrongIssuer := NewJWTService("test-signing-key", "someone-else")
	token, err = wrongIssuer.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.Error(t, err)
}

func Test_Adapter(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)
	token, err := jwtService.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)

	got, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}
