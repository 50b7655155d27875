package auth

import (
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // always "viewer" for now
	jwt.RegisteredClaims
}

// SessionTokenTTL bounds how long one analysis session token stays valid
const SessionTokenTTL = 24 * time.Hour

// jwtSecret reads the env on first use rather than at package init,
// so a value loaded from .env by godotenv is still picked up.
var jwtSecret = sync.OnceValue(loadSecret)

func loadSecret() []byte {
	if v := os.Getenv("PITCHSIDE_JWT_SECRET"); v != "" {
		return []byte(v)
	}
	return []byte("development-secret")
}

// GenerateSessionToken generates a JWT token for a viewer session
func GenerateSessionToken(sessionID string) (string, error) {
	claims := &JWTClaims{
		SessionID: sessionID,
		Role:      "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(SessionTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
