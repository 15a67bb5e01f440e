package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	assert.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "s3cret-pass"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Alice", SanitizeName("Alice"))
	assert.Equal(t, "Alice", SanitizeName("<b>Alice</b>"))
	assert.Equal(t, "", SanitizeName("<script>alert(1)</script>"))
}
