package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 13, cfg.Classification.MaxLevel)
	assert.Equal(t, 8, cfg.Classification.Concurrency)
	assert.True(t, cfg.Statistics.CacheEnabled)
	assert.Equal(t, 10*time.Minute, cfg.Statistics.CacheTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAX_CLASS_LEVEL", "12")
	t.Setenv("CLASSIFICATION_CONCURRENCY", "0")
	t.Setenv("STATISTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.ao, ,https://b.ao")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Classification.MaxLevel)
	assert.Equal(t, 8, cfg.Classification.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Statistics.CacheTTL)
	assert.Equal(t, []string{"https://a.ao", "https://b.ao"}, cfg.CORS.AllowedOrigins)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
