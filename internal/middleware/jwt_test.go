package middleware

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

var testCfg = JWTConfig{
	Secret:    "unit-test-secret",
	Issuer:    "mastidea",
	ExpiresIn: time.Hour,
}

func testUser() *domain.UserContext {
	return &domain.UserContext{
		UserID: "user-123",
		Email:  "ada@example.com",
		Name:   "Ada",
	}
}

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateJWT(testUser(), testCfg)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := validateJWT(token, testCfg.Secret, testCfg.Issuer)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	token, err := GenerateJWT(testUser(), testCfg)
	require.NoError(t, err)

	_, err = validateJWT(token+"x", testCfg.Secret, testCfg.Issuer)
	assert.True(t, errors.Is(err, port.ErrTokenInvalid))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), testCfg)
	require.NoError(t, err)

	_, err = validateJWT(token, "a-different-secret", testCfg.Issuer)
	assert.True(t, errors.Is(err, port.ErrTokenInvalid))
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	token, err := GenerateJWT(testUser(), testCfg)
	require.NoError(t, err)

	_, err = validateJWT(token, testCfg.Secret, "someone-else")
	assert.True(t, errors.Is(err, port.ErrTokenInvalid))
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	cfg := testCfg
	cfg.ExpiresIn = -time.Minute
	token, err := GenerateJWT(testUser(), cfg)
	require.NoError(t, err)

	_, err = validateJWT(token, testCfg.Secret, testCfg.Issuer)
	assert.True(t, errors.Is(err, port.ErrTokenExpired))
}

func TestValidateRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "x", "a.b", "a.b.c.d"} {
		_, err := validateJWT(token, testCfg.Secret, testCfg.Issuer)
		assert.Error(t, err, "token %q", token)
	}
}
