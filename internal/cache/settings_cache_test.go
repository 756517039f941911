package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

func TestSettingsCache_Put(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewSettingsCacheWithDB(mock, time.Hour)
	settings := domain.DebouncingSettings{DebounceDelayS: 5, DebounceKey: "k"}
	hash, err := settings.ContentHash()
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO debouncing_settings").
		WithArgs(hash, int64(5), "k", nil, nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, cache.Put(context.Background(), hash, settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsCache_Get_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewSettingsCacheWithDB(mock, time.Hour)

	mock.ExpectQuery("SELECT debounce_delay_s").
		WithArgs("missing-hash").
		WillReturnError(pgx.ErrNoRows)

	_, err = cache.Get(context.Background(), "missing-hash")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSettingsCache_Get_Expired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cache := NewSettingsCacheWithDB(mock, time.Minute)

	rows := pgxmock.NewRows([]string{
		"debounce_delay_s", "debounce_key", "max_total_debounces_amount",
		"max_total_debouncing_time_s", "debounce_args_to_accumulate", "created_at",
	}).AddRow(int64(5), "k", nil, nil, []byte("[]"), time.Now().Add(-time.Hour))

	mock.ExpectQuery("SELECT debounce_delay_s").
		WithArgs("stale-hash").
		WillReturnRows(rows)

	_, err = cache.Get(context.Background(), "stale-hash")
	assert.ErrorIs(t, err, ErrCacheExpired)
}
