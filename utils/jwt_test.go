package utils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harukit/monpix/models"
)

func TestMain(m *testing.M) {
	// Config requires a secret before first load.
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(12, "alice@example.com", models.RoleStandard, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, models.RoleStandard, claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(1, "bob@example.com", models.RoleAdmin, -time.Minute)
	assert.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}
