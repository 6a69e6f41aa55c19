// Package jwt выпускает и проверяет JWT токены, которыми клиенты подтверждают
// идентификатор пользователя и роль перед обращением к квотам.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// CustomClaims пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	UserUID              string `json:"user_uid"`
	Role                 string `json:"role"`
	jwt.RegisteredClaims        // ExpiresAt, IssuedAt и пр.
}

// MakerImpl выпускает и разбирает токены на HMAC-SHA256 с общим секретом.
// Выпуск используется утилитой quota-token, разбор middleware аутентификации.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl по секретному ключу и времени жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
