package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 90.0, cfg.Insights.ExcellentRate)
	assert.Equal(t, 80.0, cfg.Insights.GoodRate)
	assert.Equal(t, 7, cfg.Insights.TrendWindow)
	assert.Equal(t, 10*time.Minute, cfg.Insights.CacheTTL)
	assert.Equal(t, []string{"image/jpeg", "image/png", "application/pdf"}, cfg.Proofs.AllowedMIMEs)
	assert.Equal(t, int64(5*1024*1024), cfg.Proofs.MaxFileSizeBytes)
	assert.Equal(t, "0 17 * * 1-5", cfg.Digest.Schedule)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("INSIGHTS_CACHE_TTL", "not-a-duration")
	v.Set("PROOFS_MAX_FILE_SIZE", 0)
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	v.Set("INSIGHTS_GOOD_RATE", "75.5")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Insights.CacheTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.Proofs.MaxFileSizeBytes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 75.5, cfg.Insights.GoodRate)
}

func TestSplitAndTrimEmpty(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
}

func TestTimezone(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("APP_TIMEZONE", "Asia/Manila")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", cfg.Timezone)

	// 23:30 UTC on the 5th is already the 6th in Manila.
	local := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC).In(cfg.Location)
	assert.Equal(t, 6, local.Day())
}

func TestTimezoneRejectsUnknownZone(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("APP_TIMEZONE", "Mars/Olympus_Mons")

	_, err := fromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_TIMEZONE")
}
