package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

var ErrAdminKeyNotFound = errors.New("admin api key not found")

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// KeyRepository persists AdminAPIKeys, grounded on the teacher's
// internal/repository/api_key.go.
type KeyRepository struct {
	db DB
}

func NewKeyRepository(pool *pgxpool.Pool) *KeyRepository {
	return &KeyRepository{db: pool}
}

func NewKeyRepositoryWithDB(db DB) *KeyRepository {
	return &KeyRepository{db: db}
}

func (r *KeyRepository) Create(ctx context.Context, key *domain.AdminAPIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	query := `
		INSERT INTO admin_api_keys (id, name, key_hash, key_prefix, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.IsActive).
		Scan(&key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBadRequest.WithError(errors.New("admin api key already exists"))
		}
		return fmt.Errorf("create admin api key: %w", err)
	}
	return nil
}

func (r *KeyRepository) GetByHash(ctx context.Context, hash string) (*domain.AdminAPIKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, is_active, last_used_at, created_at
		FROM admin_api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	var key domain.AdminAPIKey
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive, &key.LastUsedAt, &key.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdminKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin api key by hash: %w", err)
	}
	return &key, nil
}

func (r *KeyRepository) List(ctx context.Context) ([]domain.AdminAPIKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, is_active, last_used_at, created_at
		FROM admin_api_keys
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admin api keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.AdminAPIKey
	for rows.Next() {
		var key domain.AdminAPIKey
		if err := rows.Scan(&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive, &key.LastUsedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *KeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE admin_api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update last used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAdminKeyNotFound
	}
	return nil
}

func (r *KeyRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE admin_api_keys SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke admin api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAdminKeyNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") || strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
