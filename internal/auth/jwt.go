// Package auth covers the broker's two credential surfaces: short-lived
// admin JWTs for the management endpoints, and the random access tokens
// handed out with grants.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned for expired, malformed, or forged JWTs
var ErrInvalidToken = errors.New("invalid token")

// adminTokenTTL bounds how long a stolen admin token stays usable
const adminTokenTTL = 15 * time.Minute

// GenerateAdminJWT creates a short-lived admin session token
func GenerateAdminJWT(secret []byte) (string, int64, error) {
	expirationTime := time.Now().Add(adminTokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": expirationTime,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expirationTime, nil
}

// ValidateAdminJWT verifies an admin session token
func ValidateAdminJWT(tokenString string, secret []byte) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["sub"] != "admin" {
		return ErrInvalidToken
	}

	return nil
}
