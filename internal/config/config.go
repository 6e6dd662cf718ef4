// Package config handles configuration loading for mitre-shield.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Validation ValidationConfig `yaml:"validation"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// RedisConfig holds Redis settings for session storage. When disabled,
// sessions are kept in memory and do not survive a restart.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds authentication settings. Users map usernames to
// bcrypt password hashes.
type AuthConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Users      map[string]string `yaml:"users"`
	SessionTTL time.Duration     `yaml:"session_ttl"`
}

// UploadsConfig holds import file upload settings.
type UploadsConfig struct {
	Backend       string   `yaml:"backend"` // "local" or "s3"
	MaxUploadSize int64    `yaml:"max_upload_size"`
	Local         LocalFS  `yaml:"local"`
	S3            S3Config `yaml:"s3"`
}

// LocalFS holds local filesystem upload settings.
type LocalFS struct {
	Dir string `yaml:"dir"`
}

// S3Config holds S3 upload settings. Static credentials are for
// S3-compatible stores like MinIO; against AWS itself leave them empty
// and the default credential chain applies.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, for S3-compatible stores
	KeyPrefix       string `yaml:"key_prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ValidationConfig holds rule validation settings. ExtraPlatforms
// extends the built-in platform vocabulary for deployments that extract
// from additional sources.
type ValidationConfig struct {
	ExtraPlatforms []string `yaml:"extra_platforms"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"` // Preflight cache duration in seconds
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RequestsPerIP int           `yaml:"requests_per_ip"`
	WindowSize    time.Duration `yaml:"window_size"`
	BurstSize     int           `yaml:"burst_size"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
	ExemptPaths   []string      `yaml:"exempt_paths"`
	TrustProxy    bool          `yaml:"trust_proxy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "mitre-shield",
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Auth: AuthConfig{
			Enabled:    false, // Disabled by default for development
			SessionTTL: 12 * time.Hour,
		},
		Uploads: UploadsConfig{
			Backend:       "local",
			MaxUploadSize: 10 * 1024 * 1024, // 10MB
			Local: LocalFS{
				Dir: "uploads",
			},
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Request-ID",
			},
			ExposedHeaders: []string{
				"X-Request-ID",
				"X-RateLimit-Limit",
				"X-RateLimit-Remaining",
				"X-RateLimit-Reset",
			},
			AllowCredentials: false, // Must stay false while AllowedOrigins is "*"
			MaxAge:           86400,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			RequestsPerIP: 1000,
			WindowSize:    time.Minute,
			BurstSize:     50,
			CleanupPeriod: 5 * time.Minute,
			ExemptPaths:   []string{"/health", "/metrics"},
			TrustProxy:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("SHIELD_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("SHIELD_HTTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.HTTPPort)
	}

	if level := os.Getenv("SHIELD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		c.Mongo.URI = uri
	}

	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		c.Mongo.Database = db
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}

	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Redis.Password = pass
	}

	if bucket := os.Getenv("SHIELD_S3_BUCKET"); bucket != "" {
		c.Uploads.Backend = "s3"
		c.Uploads.S3.Bucket = bucket
	}

	if region := os.Getenv("SHIELD_S3_REGION"); region != "" {
		c.Uploads.S3.Region = region
	}

	if enabled := os.Getenv("SHIELD_CORS_ENABLED"); enabled == "false" {
		c.CORS.Enabled = false
	}

	if origins := os.Getenv("SHIELD_CORS_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitAndTrim(origins, ",")
	}

	if enabled := os.Getenv("SHIELD_RATELIMIT_ENABLED"); enabled == "false" {
		c.RateLimit.Enabled = false
	}

	if rps := os.Getenv("SHIELD_RATELIMIT_RPS"); rps != "" {
		fmt.Sscanf(rps, "%d", &c.RateLimit.RequestsPerIP)
	}

	if platforms := os.Getenv("SHIELD_EXTRA_PLATFORMS"); platforms != "" {
		c.Validation.ExtraPlatforms = splitAndTrim(platforms, ",")
	}
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri must not be empty")
	}

	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database must not be empty")
	}

	switch c.Uploads.Backend {
	case "local":
		if c.Uploads.Local.Dir == "" {
			return fmt.Errorf("uploads.local.dir must be set for the local backend")
		}
	case "s3":
		if c.Uploads.S3.Bucket == "" {
			return fmt.Errorf("uploads.s3.bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid uploads backend: %q", c.Uploads.Backend)
	}

	if c.Uploads.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}

	if c.Auth.Enabled && len(c.Auth.Users) == 0 {
		return fmt.Errorf("auth is enabled but no users are configured")
	}

	return nil
}
