package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func TestAdminJWTRoundtrip(t *testing.T) {
	token, exp, err := GenerateAdminJWT(testSecret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Greater(t, exp, time.Now().Unix())
	assert.LessOrEqual(t, exp, time.Now().Add(16*time.Minute).Unix())

	assert.NoError(t, ValidateAdminJWT(token, testSecret))
}

func TestAdminJWTWrongSecret(t *testing.T) {
	token, _, err := GenerateAdminJWT(testSecret)
	require.NoError(t, err)

	err = ValidateAdminJWT(token, []byte("different-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminJWTMalformed(t *testing.T) {
	tests := []string{
		"",
		"not-a-jwt",
		"aaa.bbb.ccc",
	}

	for _, token := range tests {
		assert.ErrorIs(t, ValidateAdminJWT(token, testSecret), ErrInvalidToken)
	}
}

func TestAdminJWTExpired(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateAdminJWT(token, testSecret), ErrInvalidToken)
}

func TestAdminJWTWrongSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": "someone-else",
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateAdminJWT(token, testSecret), ErrInvalidToken)
}

func TestAdminJWTRejectsNonHMAC(t *testing.T) {
	// alg=none tokens must never validate.
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateAdminJWT(token, testSecret), ErrInvalidToken)
}
