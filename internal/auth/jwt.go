package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/velaterm/vela/domain/entities"
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ClientID uint64 `json:"client_id"`
	Role     string `json:"role"` // "agent" or "terminal"
	jwt.RegisteredClaims
}

// JWTSecret is loaded from VELA_JWT_SECRET at startup, with a development
// fallback for local runs
var JWTSecret = loadSecret()

func loadSecret() []byte {
	if secret := os.Getenv("VELA_JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("vela-development-secret")
}

// GenerateClientToken generates a JWT token for a media client
func GenerateClientToken(client entities.ClientID, role string) (string, error) {
	if role != "agent" && role != "terminal" {
		return "", fmt.Errorf("unknown client role: %s", role)
	}
	claims := &JWTClaims{
		ClientID: uint64(client),
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
