package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRepository_GetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewKeyRepositoryWithDB(mock)
	id := uuid.New()

	rows := pgxmock.NewRows([]string{"id", "name", "key_hash", "key_prefix", "is_active", "last_used_at", "created_at"}).
		AddRow(id, "ops-key", "hash", "ak_abcdefgh", true, nil, fixedTime())

	mock.ExpectQuery("SELECT id, name, key_hash").
		WithArgs("hash").
		WillReturnRows(rows)

	key, err := repo.GetByHash(context.Background(), "hash")
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)
	assert.Equal(t, "ops-key", key.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyRepository_GetByHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewKeyRepositoryWithDB(mock)

	mock.ExpectQuery("SELECT id, name, key_hash").
		WithArgs("missing").
		WillReturnError(pgxNoRows())

	_, err = repo.GetByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAdminKeyNotFound)
}

func TestKeyRepository_Revoke(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewKeyRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE admin_api_keys SET is_active").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Revoke(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
