package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"http_addr":                       "0.0.0.0:9000",
		"grpc_addr":                       ":9001",
		"database_dsn":                    "postgres://shop",
		"run_migrations":                  false,
		"access_token_secret":             "a-secret",
		"refresh_token_secret":            "r-secret",
		"access_token_validity_duration":  "10m",
		"refresh_token_validity_duration": "48h",
		"bcrypt_cost":                     10,
		"storage_timeout":                 "2s",
		"cart_retry_limit":                0,
		"redis_url":                       "redis://cache:6379/0",
		"cors_origins":                    []string{"https://shop.example"},
		"cookie_secure":                   true,
		"rate_limit_rps":                  2.5,
		"rate_limit_burst":                4,
		"log_level":                       "debug",
		"s3_bucket":                       "images",
		"s3_region":                       "eu-west-1",
		"s3_base_endpoint":                "http://minio:9000",
		"image_url_ttl":                   "1h",
	})

	t.Run("loads every field", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
		assert.Equal(t, ":9001", cfg.GRPCAddr)
		assert.Equal(t, "postgres://shop", cfg.DatabaseDSN)
		assert.False(t, cfg.RunMigrations)
		assert.Equal(t, "a-secret", cfg.AccessTokenSecret)
		assert.Equal(t, "r-secret", cfg.RefreshTokenSecret)
		assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 48*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 10, cfg.BcryptCost)
		assert.Equal(t, 2*time.Second, cfg.StorageTimeout)
		assert.Equal(t, 0, cfg.CartRetryLimit)
		assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
		assert.Equal(t, []string{"https://shop.example"}, cfg.CORSOrigins)
		assert.True(t, cfg.CookieSecure)
		assert.Equal(t, 2.5, cfg.RateLimitRPS)
		assert.Equal(t, 4, cfg.RateLimitBurst)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "images", cfg.S3Bucket)
		assert.Equal(t, "eu-west-1", cfg.S3Region)
		assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)
		assert.Equal(t, time.Hour, cfg.ImageURLTTL)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"http_addr": ":7000"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":7000", cfg.HTTPAddr)
		assert.Equal(t, ":50051", cfg.GRPCAddr)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
		assert.True(t, cfg.RunMigrations)
	})

	t.Run("no flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}
		cfg := &Config{HTTPAddr: "keep"}
		parseJson(cfg)
		assert.Equal(t, "keep", cfg.HTTPAddr)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
		os.Args = []string{"testbin", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid duration panics", func(t *testing.T) {
		bad := writeTempJSON(t, dir, "dur.json", map[string]any{"storage_timeout": "later"})
		os.Args = []string{"testbin", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
