// Package admin guards the read-only debug/admin surface: a long-lived
// AdminAPIKey (internal/domain.AdminAPIKey) is exchanged for a short-lived
// JWT, which the api/middleware.AdminAuth then validates on every request.
// Grounded on the teacher's internal/admin/jwt.go, trimmed from its
// tenant_admin/super_admin split to a single admin role.
package admin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrInvalidClaims = errors.New("invalid claims")
)

// AdminClaims identifies the AdminAPIKey a session token was issued for.
type AdminClaims struct {
	KeyID uuid.UUID `json:"key_id"`
	Name  string    `json:"name"`
	jwt.RegisteredClaims
}

// JWTService mints and validates the admin surface's bearer tokens.
type JWTService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
}

func NewJWTService(secretKey, issuer string, expiresIn time.Duration) *JWTService {
	return &JWTService{secretKey: []byte(secretKey), issuer: issuer, expiresIn: expiresIn}
}

func (s *JWTService) GenerateToken(keyID uuid.UUID, name string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		KeyID: keyID,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   keyID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
