package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected ReadTimeout 30s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Errorf("unexpected default mongo URI %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "mitre-shield" {
		t.Errorf("unexpected default mongo database %q", cfg.Mongo.Database)
	}

	if cfg.Redis.Enabled {
		t.Error("expected Redis.Enabled to be false by default")
	}

	if cfg.Uploads.Backend != "local" {
		t.Errorf("expected local uploads backend, got %q", cfg.Uploads.Backend)
	}
	if cfg.Uploads.MaxUploadSize != 10*1024*1024 {
		t.Errorf("expected MaxUploadSize 10MB, got %d", cfg.Uploads.MaxUploadSize)
	}

	if !cfg.CORS.Enabled {
		t.Error("expected CORS.Enabled to be true")
	}
	if len(cfg.CORS.AllowedOrigins) == 0 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("expected AllowedOrigins ['*'], got %v", cfg.CORS.AllowedOrigins)
	}

	if !cfg.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled to be true")
	}
	if cfg.RateLimit.RequestsPerIP != 1000 {
		t.Errorf("expected RequestsPerIP 1000, got %d", cfg.RateLimit.RequestsPerIP)
	}

	if cfg.Auth.Enabled {
		t.Error("expected Auth.Enabled to be false by default")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestValidate_InvalidHTTPPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"too high port", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.HTTPPort = tt.port
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error for invalid port")
			}
		})
	}
}

func TestValidate_UploadBackends(t *testing.T) {
	t.Run("s3 requires bucket", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Uploads.Backend = "s3"
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for s3 backend without bucket")
		}
		cfg.Uploads.S3.Bucket = "shield-uploads"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected s3 backend with bucket to validate, got %v", err)
		}
	})

	t.Run("unknown backend rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Uploads.Backend = "ftp"
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for unknown backend")
		}
	})
}

func TestValidate_AuthNeedsUsers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when auth is enabled without users")
	}

	cfg.Auth.Users = map[string]string{"admin": "$2a$10$abcdefghijklmnopqrstuv"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected config with users to validate, got %v", err)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple split", "a,b,c", []string{"a", "b", "c"}},
		{"with spaces", "a , b , c", []string{"a", "b", "c"}},
		{"empty parts filtered", "a,,b", []string{"a", "b"}},
		{"single value", "single", []string{"single"}},
		{"empty string", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input, ",")
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("splitAndTrim(%q)[%d] = %q, expected %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("HTTP port override", func(t *testing.T) {
		t.Setenv("SHIELD_HTTP_PORT", "9000")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if cfg.Server.HTTPPort != 9000 {
			t.Errorf("expected HTTPPort 9000, got %d", cfg.Server.HTTPPort)
		}
	})

	t.Run("log level override", func(t *testing.T) {
		t.Setenv("SHIELD_LOG_LEVEL", "debug")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
		}
	})

	t.Run("mongo URI override", func(t *testing.T) {
		t.Setenv("MONGODB_URI", "mongodb://db.internal:27017")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if cfg.Mongo.URI != "mongodb://db.internal:27017" {
			t.Errorf("expected mongo URI override, got %q", cfg.Mongo.URI)
		}
	})

	t.Run("redis addr enables redis", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "redis.internal:6379")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if !cfg.Redis.Enabled {
			t.Error("expected Redis.Enabled to be true when REDIS_ADDR is set")
		}
		if cfg.Redis.Addr != "redis.internal:6379" {
			t.Errorf("expected redis addr override, got %q", cfg.Redis.Addr)
		}
	})

	t.Run("s3 bucket switches backend", func(t *testing.T) {
		t.Setenv("SHIELD_S3_BUCKET", "shield-uploads")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if cfg.Uploads.Backend != "s3" {
			t.Errorf("expected s3 backend, got %q", cfg.Uploads.Backend)
		}
	})

	t.Run("extra platforms override", func(t *testing.T) {
		t.Setenv("SHIELD_EXTRA_PLATFORMS", "Solaris, AIX")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if len(cfg.Validation.ExtraPlatforms) != 2 || cfg.Validation.ExtraPlatforms[0] != "Solaris" {
			t.Errorf("expected extra platforms [Solaris AIX], got %v", cfg.Validation.ExtraPlatforms)
		}
	})

	t.Run("CORS disabled override", func(t *testing.T) {
		t.Setenv("SHIELD_CORS_ENABLED", "false")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if cfg.CORS.Enabled {
			t.Error("expected CORS.Enabled to be false")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  http_port: 9090\nmongo:\n  database: shield-test\nvalidation:\n  extra_platforms: [\"Solaris\"]\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHIELD_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("expected HTTPPort 9090 from file, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Mongo.Database != "shield-test" {
		t.Errorf("expected database shield-test, got %q", cfg.Mongo.Database)
	}
	if len(cfg.Validation.ExtraPlatforms) != 1 || cfg.Validation.ExtraPlatforms[0] != "Solaris" {
		t.Errorf("expected extra platforms from file, got %v", cfg.Validation.ExtraPlatforms)
	}
	// Unset keys keep their defaults.
	if cfg.Uploads.Backend != "local" {
		t.Errorf("expected default uploads backend, got %q", cfg.Uploads.Backend)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SHIELD_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.HTTPPort)
	}
}
