package admin

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid admin api key")

// Service exchanges a long-lived AdminAPIKey for a short-lived session JWT,
// the admin surface's login step.
type Service struct {
	keys *KeyRepository
	jwt  *JWTService
}

func NewService(keys *KeyRepository, jwt *JWTService) *Service {
	return &Service{keys: keys, jwt: jwt}
}

// Authenticate validates a plaintext admin key against its stored hash and
// returns a bearer token for subsequent requests.
func (s *Service) Authenticate(ctx context.Context, plainKey string) (string, error) {
	hash := domain.HashAdminKey(plainKey)

	key, err := s.keys.GetByHash(ctx, hash)
	if errors.Is(err, ErrAdminKeyNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := s.keys.UpdateLastUsed(ctx, key.ID); err != nil {
		return "", err
	}

	return s.jwt.GenerateToken(key.ID, key.Name)
}
