package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	adminKeyLength = 32
	base62Chars    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// AdminAPIKey gates access to the admin/debug API (health, debounce
// inspection, pre-warm pool stats) — not the job submission surface, which
// is out of scope for this core.
type AdminAPIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GenerateAdminAPIKey returns (plainKey, hash, prefix). Format: ak_<random32>.
func GenerateAdminAPIKey() (string, string, string, error) {
	randomPart, err := generateSecureRandomString(adminKeyLength)
	if err != nil {
		return "", "", "", err
	}

	plainKey := "ak_" + randomPart
	hash := HashAdminKey(plainKey)
	keyPrefix := plainKey[:10]

	return plainKey, hash, keyPrefix, nil
}

func HashAdminKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (a *AdminAPIKey) Validate() error {
	if a.Name == "" {
		return errors.New("name cannot be empty")
	}
	if a.KeyHash == "" {
		return errors.New("key_hash cannot be empty")
	}
	return nil
}

func generateSecureRandomString(length int) (string, error) {
	result := make([]byte, length)
	base62Len := big.NewInt(int64(len(base62Chars)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", err
		}
		result[i] = base62Chars[num.Int64()]
	}

	return string(result), nil
}
