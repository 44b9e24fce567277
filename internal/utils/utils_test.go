package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/stockroute/internal/authz"
)

func init() {
	PasswordCost = bcrypt.MinCost
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))

	_, err = HashPassword("abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestTokenRoundTripKeepsActorKind(t *testing.T) {
	admin := authz.Admin(uuid.New(), "Owner@Shop.com")
	token, err := GenerateToken("secret", admin, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, admin, parsed)

	manager := authz.ManagerActingAsAdmin(uuid.New(), "owner@shop.com", uuid.New())
	token, err = GenerateToken("secret", manager, time.Hour)
	require.NoError(t, err)

	parsed, err = ParseToken("secret", token)
	require.NoError(t, err)
	assert.True(t, parsed.IsManager())
	assert.Equal(t, manager.AdminID, parsed.EffectiveUserID())
	assert.Equal(t, *manager.ManagerID, *parsed.ManagerID)
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := GenerateToken("secret", authz.Admin(uuid.New(), "a@b.com"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", authz.Admin(uuid.New(), "a@b.com"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, SessionTokenBytes*2)
	assert.NotEqual(t, a, b)
}
