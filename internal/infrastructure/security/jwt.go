package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager validates the access tokens the auth service issues.
// Generate exists for tooling and tests; this service never logs anyone in.
type TokenManager struct {
	accessSecret []byte
	ttl          time.Duration
}

func NewTokenManager(accessSecret string) *TokenManager {
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		ttl:          15 * time.Minute,
	}
}

func (m *TokenManager) Generate(userID string) (string, error) {
	at := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"exp":  time.Now().Add(m.ttl).Unix(),
		"type": "access",
	})
	return at.SignedString(m.accessSecret)
}

// ValidateAccessToken returns the subject of a valid access token.
func (m *TokenManager) ValidateAccessToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.accessSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
