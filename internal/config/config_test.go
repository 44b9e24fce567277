package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOCKROUTE_DB_DRIVER", "sqlite")
	t.Setenv("STOCKROUTE_DATABASE_URL", "file::memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL())
	assert.Equal(t, 10*time.Minute, cfg.OTP.ThrottleWindow)
	assert.Empty(t, cfg.Admin.BypassID)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STOCKROUTE_DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadReadsPrefixedNames(t *testing.T) {
	t.Setenv("STOCKROUTE_DB_DRIVER", "sqlite")
	t.Setenv("STOCKROUTE_JWT_SECRET", "real-secret")
	t.Setenv("STOCKROUTE_JWT_TTL_HOURS", "2")
	t.Setenv("STOCKROUTE_ADMIN_ID", "root")
	t.Setenv("STOCKROUTE_S3_BUCKET", "media")
	t.Setenv("STOCKROUTE_OTP_THROTTLE_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "real-secret", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL())
	assert.Equal(t, "root", cfg.Admin.BypassID)
	assert.Equal(t, "media", cfg.Storage.Bucket)
	assert.Equal(t, 3, cfg.OTP.ThrottleLimit)
}
