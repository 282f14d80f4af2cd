// Package auth verifies the opaque owner identity attached to each request.
// Identity management itself lives outside the engine; the only contract is
// an HS256 JWT whose OwnerID claim names the sync partition.
package auth

import (
	"time"

	"github.com/antonkovalev/storysync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the verified owner id.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string
}

// GenerateToken signs a token for ownerID, used by tests and tooling.
func GenerateToken(ownerID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		OwnerID: ownerID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetOwnerIDFromToken parses and validates tokenString and returns the
// owner id claim.
func GetOwnerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.OwnerID, nil
}
