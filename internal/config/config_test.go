package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Errorf("http_addr = %q, want :8090", cfg.HTTPAddr)
	}
	if cfg.ScanInterval != 6*time.Hour {
		t.Errorf("scan_interval = %v, want 6h", cfg.ScanInterval)
	}
	if cfg.ScanStartDelay != time.Minute {
		t.Errorf("scan_start_delay = %v, want 1m", cfg.ScanStartDelay)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("NOTIFY_DATABASE_URL", "postgres://localhost/notify")
	t.Setenv("NOTIFY_JWT_SECRET", "s3cret")
	t.Setenv("NOTIFY_REDIS_ADDR", "localhost:6379")
	t.Setenv("NOTIFY_HTTP_ADDR", ":7777")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/notify" {
		t.Errorf("database_url = %q, want env value", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("jwt_secret = %q, want env value", cfg.JWTSecret)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("redis_addr = %q, want env value", cfg.RedisAddr)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Errorf("http_addr = %q, want env override", cfg.HTTPAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env-only config should validate, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notify.yaml")
	content := []byte("http_addr: \":9999\"\ndatabase_url: postgres://localhost/notify\njwt_secret: s3cret\nscan_interval: 1h\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("http_addr = %q, want :9999", cfg.HTTPAddr)
	}
	if cfg.ScanInterval != time.Hour {
		t.Errorf("scan_interval = %v, want 1h", cfg.ScanInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing database", Config{JWTSecret: "s", ScanInterval: time.Hour}, true},
		{"missing jwt secret", Config{DatabaseURL: "postgres://x", ScanInterval: time.Hour}, true},
		{"zero interval", Config{DatabaseURL: "postgres://x", JWTSecret: "s"}, true},
		{"secret arn instead of url", Config{DatabaseSecretARN: "arn:x", JWTSecret: "s", ScanInterval: time.Hour}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
