package util

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLicenseCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateLicenseCode()
		require.NoError(t, err)
		assert.Len(t, code, 23)
		assert.Regexp(t, pattern, code)
	}
}

func TestGenerateLicenseCodeAlphabet(t *testing.T) {
	code, err := GenerateLicenseCode()
	require.NoError(t, err)

	for _, ch := range strings.ReplaceAll(code, "-", "") {
		assert.Contains(t, codeAlphabet, string(ch))
	}
}

func TestGenerateLicenseCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenerateLicenseCode()
		require.NoError(t, err)
		assert.False(t, seen[code], "授权码重复: %s", code)
		seen[code] = true
	}
}

func TestGenerateAccessToken(t *testing.T) {
	token, err := GenerateAccessToken()
	require.NoError(t, err)

	// 32字节的十六进制表示
	assert.Len(t, token, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, token)

	other, err := GenerateAccessToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
