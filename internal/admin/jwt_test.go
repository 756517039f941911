package admin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", "taskforge-admin", time.Hour)
	keyID := uuid.New()

	token, err := service.GenerateToken(keyID, "ops-key")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, keyID, claims.KeyID)
	assert.Equal(t, "ops-key", claims.Name)
	assert.Equal(t, "taskforge-admin", claims.Issuer)
}

func TestJWTService_ValidateToken_InvalidToken(t *testing.T) {
	service := NewJWTService("test-secret-key", "taskforge-admin", time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{name: "invalid token format", token: "invalid.token.format"},
		{name: "empty token", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTService_ValidateToken_ExpiredToken(t *testing.T) {
	service := NewJWTService("test-secret-key", "taskforge-admin", -time.Hour)

	token, err := service.GenerateToken(uuid.New(), "ops-key")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ValidateToken_DifferentSecret(t *testing.T) {
	service1 := NewJWTService("secret-1", "taskforge-admin", time.Hour)
	service2 := NewJWTService("secret-2", "taskforge-admin", time.Hour)

	token, err := service1.GenerateToken(uuid.New(), "ops-key")
	require.NoError(t, err)

	_, err = service2.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
