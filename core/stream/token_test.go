package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := randomToken()
		require.NoError(t, err)
		assert.Len(t, token, 32)
		assert.False(t, seen[token], "token repeated: %s", token)
		seen[token] = true
	}
}

func TestRandomShortToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := randomShortToken()
		require.NoError(t, err)
		assert.Len(t, token, shortTokenLen)
		for _, c := range token {
			assert.True(t, strings.ContainsRune(shortTokenChars, c), "unexpected character %q", c)
		}
		assert.False(t, seen[token], "short token repeated: %s", token)
		seen[token] = true
	}
}

func TestFallbackTokens(t *testing.T) {
	token, short := fallbackTokens()
	assert.NotEmpty(t, token)
	assert.Len(t, short, shortTokenLen)
	assert.NotEqual(t, token, short)
}
