// Package cache implements the content-addressed DebouncingSettings cache
// spec.md §3 implies ("content-addressed, reusable across many scripts"):
// a Postgres-backed TTL cache keyed by the settings' content hash, adapted
// from the teacher's internal/cache/pg_cache.go.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
)

// DB is the slice of pgxpool.Pool this package needs, kept as its own
// interface so pgxmock can stand in for *pgxpool.Pool in unit tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// SettingsCache stores DebouncingSettings keyed by their content hash, so
// many scripts that share identical settings share one cached row.
type SettingsCache struct {
	db  DB
	ttl time.Duration
}

func NewSettingsCache(db *pgxpool.Pool, ttl time.Duration) *SettingsCache {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &SettingsCache{db: db, ttl: ttl}
}

// NewSettingsCacheWithDB constructs a SettingsCache against any DB
// implementation, used by tests to inject a pgxmock pool.
func NewSettingsCacheWithDB(db DB, ttl time.Duration) *SettingsCache {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &SettingsCache{db: db, ttl: ttl}
}

// Get looks up settings by their content hash; ErrCacheMiss and
// ErrCacheExpired are both treated by callers as "recompute and Put".
func (c *SettingsCache) Get(ctx context.Context, contentHash string) (*domain.DebouncingSettings, error) {
	const query = `
		SELECT debounce_delay_s, debounce_key, max_total_debounces_amount,
		       max_total_debouncing_time_s, debounce_args_to_accumulate, created_at
		FROM debouncing_settings
		WHERE content_hash = $1
	`

	var settings domain.DebouncingSettings
	var argsJSON []byte
	var createdAt time.Time

	err := c.db.QueryRow(ctx, query, contentHash).Scan(
		&settings.DebounceDelayS, &settings.DebounceKey, &settings.MaxTotalDebouncesAmount,
		&settings.MaxTotalDebouncingTimeS, &argsJSON, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	if time.Since(createdAt) > c.ttl {
		return nil, ErrCacheExpired
	}

	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &settings.DebounceArgsToAccumulate); err != nil {
			return nil, err
		}
	}

	return &settings, nil
}

// Put stores settings under their content hash, refreshing created_at so
// the TTL window restarts on every write (matching the teacher's
// ON CONFLICT ... created_at = NOW() pattern).
func (c *SettingsCache) Put(ctx context.Context, contentHash string, settings domain.DebouncingSettings) error {
	argsJSON, err := json.Marshal(settings.DebounceArgsToAccumulate)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO debouncing_settings
			(content_hash, debounce_delay_s, debounce_key, max_total_debounces_amount,
			 max_total_debouncing_time_s, debounce_args_to_accumulate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (content_hash) DO UPDATE SET
			debounce_delay_s = EXCLUDED.debounce_delay_s,
			debounce_key = EXCLUDED.debounce_key,
			max_total_debounces_amount = EXCLUDED.max_total_debounces_amount,
			max_total_debouncing_time_s = EXCLUDED.max_total_debouncing_time_s,
			debounce_args_to_accumulate = EXCLUDED.debounce_args_to_accumulate,
			created_at = NOW()
	`

	_, err = c.db.Exec(ctx, query, contentHash, settings.DebounceDelayS, settings.DebounceKey,
		settings.MaxTotalDebouncesAmount, settings.MaxTotalDebouncingTimeS, argsJSON)
	return err
}

// Resolve is the read-through helper services call: look the settings up
// by their own content hash, falling back to Put-then-return on miss.
func (c *SettingsCache) Resolve(ctx context.Context, settings domain.DebouncingSettings) (*domain.DebouncingSettings, error) {
	hash, err := settings.ContentHash()
	if err != nil {
		return nil, err
	}

	cached, err := c.Get(ctx, hash)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheExpired) {
		return nil, err
	}

	if err := c.Put(ctx, hash, settings); err != nil {
		return nil, err
	}
	return &settings, nil
}
