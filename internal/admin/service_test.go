package admin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

func TestService_Authenticate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	plainKey, hash, prefix, err := domain.GenerateAdminAPIKey()
	require.NoError(t, err)

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "name", "key_hash", "key_prefix", "is_active", "last_used_at", "created_at"}).
		AddRow(id, "ops-key", hash, prefix, true, nil, fixedTime())

	mock.ExpectQuery("SELECT id, name, key_hash").
		WithArgs(hash).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE admin_api_keys SET last_used_at").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(NewKeyRepositoryWithDB(mock), NewJWTService("secret", "taskforge-admin", time.Hour))

	token, err := svc.Authenticate(context.Background(), plainKey)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Authenticate_InvalidKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, key_hash").
		WithArgs(domain.HashAdminKey("ak_nope")).
		WillReturnError(pgxNoRows())

	svc := NewService(NewKeyRepositoryWithDB(mock), NewJWTService("secret", "taskforge-admin", time.Hour))

	_, err = svc.Authenticate(context.Background(), "ak_nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
