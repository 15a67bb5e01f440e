package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

func TestContentTypeAllowed(t *testing.T) {
	assert.True(t, contentTypeAllowed("image/png", imageTypes))
	assert.True(t, contentTypeAllowed("IMAGE/JPEG", imageTypes))
	assert.True(t, contentTypeAllowed("image/webp; charset=binary", imageTypes))

	assert.False(t, contentTypeAllowed("image/svg+xml", imageTypes))
	assert.False(t, contentTypeAllowed("application/pdf", imageTypes))
	assert.False(t, contentTypeAllowed("", imageTypes))
	assert.False(t, contentTypeAllowed("not a type", imageTypes))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("photo.jpg", "image/jpeg"))
	assert.Equal(t, ".png", extensionFor("Shot.PNG", "image/png"))
	// No extension on the original: derive from the declared type.
	assert.Equal(t, ".webp", extensionFor("clipboard", "image/webp"))
	assert.Equal(t, ".gif", extensionFor("", "image/gif"))
	assert.Equal(t, "", extensionFor("", ""))
}

func TestParsePagination(t *testing.T) {
	page, size := parsePagination("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)

	page, size = parsePagination("3", "50")
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, size)

	// Out-of-range values fall back to defaults.
	page, size = parsePagination("-1", "1000")
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)
}

func TestNormalizeRole(t *testing.T) {
	role, ok := normalizeRole("")
	assert.True(t, ok)
	assert.Equal(t, "standard", role)

	role, ok = normalizeRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, "admin", role)

	role, ok = normalizeRole("administrator")
	assert.True(t, ok)
	assert.Equal(t, "admin", role)

	_, ok = normalizeRole("superuser")
	assert.False(t, ok)
}
