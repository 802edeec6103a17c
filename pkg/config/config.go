package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Index cap bounds. The index document is rewritten whole on every mutation,
// so the cap keeps it at a size that stays cheap to ship over the wire.
const (
	MinIndexCap = 1000
	MaxIndexCap = 2000
)

// Config holds the configuration for the service
type Config struct {
	Server   ServerConfig
	Registry RegistryConfig
	Index    IndexConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RegistryConfig holds the generic-packages blob store settings
type RegistryConfig struct {
	APIBase        string
	Slug           string
	Token          string
	PackageName    string
	PackageVersion string
	Timeout        time.Duration
	PublicBaseURL  string
}

// PackageBaseURL returns the base address under which objects live:
// {apiBase}/{slug}/-/packages/generic/{packageName}/{packageVersion}
func (r *RegistryConfig) PackageBaseURL() string {
	return fmt.Sprintf("%s/%s/-/packages/generic/%s/%s",
		strings.TrimRight(r.APIBase, "/"), r.Slug, r.PackageName, r.PackageVersion)
}

// IndexConfig holds metadata index settings
type IndexConfig struct {
	Backend    string // remote, local
	ObjectName string // object name of the index document (remote backend)
	LocalPath  string // file path of the index document (local backend)
	Cap        int
	Durability string // sync, async
}

// CacheConfig holds index cache settings
type CacheConfig struct {
	Type          string // memory, redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration // 0 keeps the cache for the process lifetime
}

// AuthConfig holds the shared-secret settings. PasswordHash, when set, takes
// precedence over Password and holds a bcrypt hash of the secret.
type AuthConfig struct {
	Password     string
	PasswordHash string
	TokenTTL     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Registry: RegistryConfig{
			APIBase:        getEnv("PACKAGE_API_BASE", "https://api.cnb.cool"),
			Slug:           getEnv("SLUG_IMG", ""),
			Token:          getEnv("TOKEN_IMG", ""),
			PackageName:    getEnv("PACKAGE_NAME", "imgbed-assets"),
			PackageVersion: getEnv("PACKAGE_VERSION", "v1"),
			Timeout:        getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
			PublicBaseURL:  getEnv("BASE_IMG_URL", ""),
		},
		Index: IndexConfig{
			Backend:    getEnv("INDEX_BACKEND", "remote"),
			ObjectName: getEnv("INDEX_OBJECT", "images-index.json"),
			LocalPath:  getEnv("INDEX_LOCAL_PATH", ""),
			Cap:        getEnvInt("INDEX_CAP", MinIndexCap),
			Durability: getEnv("INDEX_DURABILITY", "sync"),
		},
		Cache: CacheConfig{
			Type:          getEnv("CACHE_TYPE", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("CACHE_TTL", 0),
		},
		Auth: AuthConfig{
			Password:     getEnv("SITE_PASSWORD", ""),
			PasswordHash: getEnv("SITE_PASSWORD_HASH", ""),
			TokenTTL:     getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks required settings and normalizes bounded values. Missing
// credentials are fatal here rather than on first use.
func (c *Config) Validate() error {
	if c.Registry.Slug == "" || c.Registry.Token == "" {
		return fmt.Errorf("config: SLUG_IMG and TOKEN_IMG must be set")
	}

	switch c.Index.Backend {
	case "remote":
	case "local":
		if c.Index.LocalPath == "" {
			return fmt.Errorf("config: INDEX_LOCAL_PATH must be set for the local index backend")
		}
	default:
		return fmt.Errorf("config: unsupported index backend: %s", c.Index.Backend)
	}

	switch c.Index.Durability {
	case "sync", "async":
	default:
		return fmt.Errorf("config: unsupported index durability mode: %s", c.Index.Durability)
	}

	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported cache type: %s", c.Cache.Type)
	}

	if c.Index.Cap < MinIndexCap {
		c.Index.Cap = MinIndexCap
	}
	if c.Index.Cap > MaxIndexCap {
		c.Index.Cap = MaxIndexCap
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
