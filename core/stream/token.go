package stream

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// tokenBytes gives 128 bits of entropy, enough that collisions are a
	// storage-constraint safety net rather than an expected event.
	tokenBytes = 16

	shortTokenLen   = 10
	shortTokenChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// maxTokenAttempts bounds the regenerate-on-collision loop before
	// falling back to UUID-derived values.
	maxTokenAttempts = 3
)

// randomToken returns a 32-char hex wrapper token.
func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return fmt.Sprintf("%x", buf), nil
}

// randomShortToken returns a short base62 alias for the wrapper token.
func randomShortToken() (string, error) {
	buf := make([]byte, shortTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	out := make([]byte, shortTokenLen)
	for i, b := range buf {
		out[i] = shortTokenChars[int(b)%len(shortTokenChars)]
	}
	return string(out), nil
}

// fallbackTokens derives token values from UUIDs once random generation has
// collided maxTokenAttempts times in a row.
func fallbackTokens() (token, shortToken string) {
	token = strings.ReplaceAll(uuid.NewString(), "-", "")
	shortToken = strings.ReplaceAll(uuid.NewString(), "-", "")[:shortTokenLen]
	return token, shortToken
}
