package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// EnvConfig lists the environment variables understood by the server.
// Unset variables leave the corresponding pointer nil. Durations take Go
// syntax ("15m", "168h") or a leading day count ("7d", "1d12h").
type EnvConfig struct {
	HTTPAddr                     *string         `env:"HTTP_ADDR"`
	GRPCAddr                     *string         `env:"GRPC_ADDR"`
	DatabaseDSN                  *string         `env:"DATABASE_DSN"`
	RunMigrations                *bool           `env:"RUN_MIGRATIONS"`
	AccessTokenSecret            *string         `env:"JWT_SECRET"`
	RefreshTokenSecret           *string         `env:"JWT_REFRESH_SECRET"`
	AccessTokenValidityDuration  *timex.Duration `env:"JWT_EXPIRE"`
	RefreshTokenValidityDuration *timex.Duration `env:"JWT_REFRESH_EXPIRE"`
	BcryptCost                   *int            `env:"BCRYPT_ROUNDS"`
	StorageTimeout               *timex.Duration `env:"STORAGE_TIMEOUT"`
	CartRetryLimit               *int            `env:"CART_RETRY_LIMIT"`
	RedisURL                     *string         `env:"REDIS_URL"`
	CORSOrigins                  []string        `env:"CORS_ORIGIN" envSeparator:","`
	CookieSecure                 *bool           `env:"COOKIE_SECURE"`
	RateLimitRPS                 *float64        `env:"RATE_LIMIT_RPS"`
	RateLimitBurst               *int            `env:"RATE_LIMIT_BURST"`
	LogLevel                     *string         `env:"LOG_LEVEL"`
	S3RootUser                   *string         `env:"S3_ROOT_USER"`
	S3RootPassword               *string         `env:"S3_ROOT_PASSWORD"`
	S3Bucket                     *string         `env:"S3_BUCKET"`
	S3Region                     *string         `env:"S3_REGION"`
	S3BaseEndpoint               *string         `env:"S3_BASE_ENDPOINT"`
	ImageURLTTL                  *timex.Duration `env:"IMAGE_URL_TTL"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// parseEnv overlays values from the environment. A malformed value panics,
// like a malformed config file or flag does.
func parseEnv(config *Config) {
	e := &EnvConfig{}
	if err := ParseEnv(e); err != nil {
		panic(err)
	}
	e.apply(config)
}

func (e *EnvConfig) apply(config *Config) {
	override(&config.HTTPAddr, e.HTTPAddr)
	override(&config.GRPCAddr, e.GRPCAddr)
	override(&config.DatabaseDSN, e.DatabaseDSN)
	override(&config.RunMigrations, e.RunMigrations)
	override(&config.AccessTokenSecret, e.AccessTokenSecret)
	override(&config.RefreshTokenSecret, e.RefreshTokenSecret)
	overrideDuration(&config.AccessTokenValidityDuration, e.AccessTokenValidityDuration)
	overrideDuration(&config.RefreshTokenValidityDuration, e.RefreshTokenValidityDuration)
	override(&config.BcryptCost, e.BcryptCost)
	overrideDuration(&config.StorageTimeout, e.StorageTimeout)
	override(&config.CartRetryLimit, e.CartRetryLimit)
	override(&config.RedisURL, e.RedisURL)
	override(&config.CookieSecure, e.CookieSecure)
	override(&config.RateLimitRPS, e.RateLimitRPS)
	override(&config.RateLimitBurst, e.RateLimitBurst)
	override(&config.LogLevel, e.LogLevel)
	override(&config.S3RootUser, e.S3RootUser)
	override(&config.S3RootPassword, e.S3RootPassword)
	override(&config.S3Bucket, e.S3Bucket)
	override(&config.S3Region, e.S3Region)
	override(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	overrideDuration(&config.ImageURLTTL, e.ImageURLTTL)
	if len(e.CORSOrigins) > 0 {
		config.CORSOrigins = e.CORSOrigins
	}
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func overrideDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
