package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

var ErrInvalidRole = errors.New("token: неизвестная роль")

// TokenManager выпускает и проверяет access токены. Пользователи и их
// роли заводятся вне сервиса, здесь только подпись.
type TokenManager struct {
	accessSecret []byte
	accessTTL    time.Duration
	clock        clock.Clock
}

func NewTokenManager(accessSecret string, accessTTL time.Duration, clk clock.Clock) *TokenManager {
	if clk == nil {
		clk = clock.System()
	}
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		accessTTL:    accessTTL,
		clock:        clk,
	}
}

// GenerateAccess выпускает access токен с ролью в клейме role.
func (m *TokenManager) GenerateAccess(userID uuid.UUID, role valueobject.Role) (string, time.Time, error) {
	if !role.IsValid() {
		return "", time.Time{}, ErrInvalidRole
	}
	now := m.clock.Now()
	exp := now.Add(m.accessTTL)

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess извлекает userID и роль из access токена.
func (m *TokenManager) ParseAccess(token string) (uuid.UUID, valueobject.Role, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return uuid.Nil, "", err
	}
	if !parsed.Valid {
		return uuid.Nil, "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, "", jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", err
	}

	raw, _ := claims["role"].(string)
	role := valueobject.Role(raw)
	if !role.IsValid() {
		return uuid.Nil, "", ErrInvalidRole
	}
	return userID, role, nil
}
