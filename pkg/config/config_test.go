package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 300*time.Second, cfg.Cache.FreshnessWindow)
	assert.Equal(t, 3, cfg.Notifications.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Notifications.BackoffBase)
	assert.Equal(t, time.Minute, cfg.Notifications.BackoffMax)
	assert.Equal(t, "0 12 * * 0", cfg.Digest.Schedule)
	assert.False(t, cfg.GitHub.Enabled())
	assert.Len(t, cfg.CORS.AllowedOrigins, 3)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ACCESS_TOKEN_EXPIRE_MINUTES", 5)
	v.Set("REFRESH_TOKEN_EXPIRE_DAYS", 30)
	v.Set("ALGORITHM", "hs512")
	v.Set("CACHE_FRESHNESS_WINDOW", "not-a-duration")
	v.Set("GITHUB_CLIENT_ID", "id")
	v.Set("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, 300*time.Second, cfg.Cache.FreshnessWindow)
	assert.True(t, cfg.GitHub.Enabled())
}

func TestFromViperRequiresSecret(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SECRET_KEY", "")

	_, err := fromViper(v)
	require.Error(t, err)
}
