package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Platform   PlatformConfig
	Sync       SyncConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	// Identity is the server's age identity; per-account DEKs are wrapped
	// with its recipient.
	Identity string
	// DEKCacheTTLSeconds bounds how long an unwrapped account key stays
	// in memory.
	DEKCacheTTLSeconds int
}

type PlatformConfig struct {
	// APIBase is the base URL of the platform's addon collection API.
	APIBase        string
	TimeoutSeconds int
}

type SyncConfig struct {
	// ManifestTimeoutSeconds bounds a single upstream manifest fetch.
	ManifestTimeoutSeconds int
	// ManifestCacheTTLSeconds is the redis TTL for fetched manifests.
	ManifestCacheTTLSeconds int
	// SchedulerTickSeconds is the interval of the scheduler:tick task.
	SchedulerTickSeconds int
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (e *EncryptionConfig) DEKCacheTTL() time.Duration {
	return time.Duration(e.DEKCacheTTLSeconds) * time.Second
}

func (p *PlatformConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (s *SyncConfig) ManifestTimeout() time.Duration {
	return time.Duration(s.ManifestTimeoutSeconds) * time.Second
}

func (s *SyncConfig) ManifestCacheTTL() time.Duration {
	return time.Duration(s.ManifestCacheTTLSeconds) * time.Second
}

func (s *SyncConfig) SchedulerTick() time.Duration {
	return time.Duration(s.SchedulerTickSeconds) * time.Second
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "addonherd")
	v.SetDefault("DATABASE_PASSWORD", "addonherd_secret")
	v.SetDefault("DATABASE_NAME", "addonherd")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("ENCRYPTION_DEK_CACHE_TTL_SECONDS", 300)
	v.SetDefault("PLATFORM_API_BASE", "https://api.strem.io")
	v.SetDefault("PLATFORM_TIMEOUT_SECONDS", 15)
	v.SetDefault("SYNC_MANIFEST_TIMEOUT_SECONDS", 10)
	v.SetDefault("SYNC_MANIFEST_CACHE_TTL_SECONDS", 300)
	v.SetDefault("SYNC_SCHEDULER_TICK_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Identity:           v.GetString("ENCRYPTION_IDENTITY"),
			DEKCacheTTLSeconds: v.GetInt("ENCRYPTION_DEK_CACHE_TTL_SECONDS"),
		},
		Platform: PlatformConfig{
			APIBase:        v.GetString("PLATFORM_API_BASE"),
			TimeoutSeconds: v.GetInt("PLATFORM_TIMEOUT_SECONDS"),
		},
		Sync: SyncConfig{
			ManifestTimeoutSeconds:  v.GetInt("SYNC_MANIFEST_TIMEOUT_SECONDS"),
			ManifestCacheTTLSeconds: v.GetInt("SYNC_MANIFEST_CACHE_TTL_SECONDS"),
			SchedulerTickSeconds:    v.GetInt("SYNC_SCHEDULER_TICK_SECONDS"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}
