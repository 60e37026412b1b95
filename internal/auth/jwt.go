package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pavkata12/app/internal/models"
)

// JWTManager issues and validates operator tokens
type JWTManager struct {
	secretKey   string
	operatorKey string
	ttl         time.Duration
	now         func() time.Time
}

func NewJWTManager(secretKey, operatorKey string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{
		secretKey:   secretKey,
		operatorKey: operatorKey,
		ttl:         ttl,
		now:         time.Now,
	}
}

// CheckOperatorKey reports whether key matches the configured operator key
func (j *JWTManager) CheckOperatorKey(key string) bool {
	if j.operatorKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(j.operatorKey)) == 1
}

// GenerateToken signs a token for operator and returns it with its expiry
func (j *JWTManager) GenerateToken(operator string) (string, time.Time, error) {
	if j.secretKey == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret key is empty")
	}
	if operator == "" {
		return "", time.Time{}, fmt.Errorf("operator name is empty")
	}

	now := j.now().UTC()
	expiresAt := now.Add(j.ttl)

	claims := &models.AuthClaims{
		Operator: operator,
		UUID:     uuid.New(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator": claims.Operator,
		"jti":      claims.UUID.String(),
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	})

	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTManager) ValidateToken(tokenString string) (*models.AuthClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	operator, ok := claims["operator"].(string)
	if !ok || operator == "" {
		return nil, fmt.Errorf("invalid operator claim")
	}

	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid jti claim")
	}

	jti, err := uuid.Parse(jtiStr)
	if err != nil {
		return nil, fmt.Errorf("invalid jti format")
	}

	return &models.AuthClaims{
		Operator: operator,
		UUID:     jti,
	}, nil
}
