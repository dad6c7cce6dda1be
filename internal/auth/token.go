package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	accessTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	accessTokenLength   = 15
)

// GenerateAccessToken produces a random 15-character alphanumeric token.
// Tokens identify grants and are handed to Telegram users, so they use
// crypto/rand rather than a seeded PRNG.
func GenerateAccessToken() (string, error) {
	out := make([]byte, accessTokenLength)
	max := big.NewInt(int64(len(accessTokenAlphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		out[i] = accessTokenAlphabet[n.Int64()]
	}

	return string(out), nil
}
