// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "crimewatch-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "crimewatch-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTExpiresIn is the access token lifetime (e.g. "15m").
	JWTExpiresIn string `mapstructure:"JWT_EXPIRES_IN"`
	// JWTSessionMaxAge is the absolute session lifetime measured from login (e.g. "720h").
	// A lineage older than this fails refresh regardless of rotation count.
	JWTSessionMaxAge string `mapstructure:"JWT_SESSION_MAX_AGE"`
	// MaxRefreshCount is the rotation cap per session lineage; exceeding it forces re-login.
	MaxRefreshCount int `mapstructure:"MAX_REFRESH_COUNT"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// DBTimeout is the per-query storage timeout (e.g. "3s").
	DBTimeout string `mapstructure:"DB_TIMEOUT"`
	// PredictionURL is the base URL of the external risk-prediction demo service; empty disables the proxy.
	PredictionURL string `mapstructure:"PREDICTION_URL"`
	// OTLPEndpoint is the OTLP gRPC endpoint for trace export (e.g. localhost:4317); empty disables tracing.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "crimewatch-auth")
	v.SetDefault("JWT_AUDIENCE", "crimewatch-api")
	v.SetDefault("JWT_EXPIRES_IN", "15m")
	v.SetDefault("JWT_SESSION_MAX_AGE", "720h") // 30d
	v.SetDefault("MAX_REFRESH_COUNT", 50)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("DB_TIMEOUT", "3s")
	v.SetDefault("PREDICTION_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.MaxRefreshCount <= 0 {
		return nil, errors.New("config: MAX_REFRESH_COUNT must be positive")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTExpiresIn as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SessionMaxAge parses JWTSessionMaxAge as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionMaxAge() time.Duration {
	d, err := time.ParseDuration(c.JWTSessionMaxAge)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// QueryTimeout parses DBTimeout as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.DBTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}
