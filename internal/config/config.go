// Package config loads service configuration from an optional YAML file and
// NOTIFY_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the notification service needs at startup.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	DatabaseURL       string `mapstructure:"database_url"`
	DatabaseSecretARN string `mapstructure:"database_secret_arn"`
	MigrationsDir     string `mapstructure:"migrations_dir"`

	RedisAddr string `mapstructure:"redis_addr"`

	RabbitURL   string `mapstructure:"rabbit_url"`
	RabbitQueue string `mapstructure:"rabbit_queue"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	JWTSecret        string   `mapstructure:"jwt_secret"`
	ServiceKeySecret string   `mapstructure:"service_key_secret"`
	ServiceKeyHashes []string `mapstructure:"service_key_hashes"`

	ResendAPIKey string `mapstructure:"resend_api_key"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`

	ScanInterval   time.Duration `mapstructure:"scan_interval"`
	ScanStartDelay time.Duration `mapstructure:"scan_start_delay"`
}

// Load reads the config file at path (optional, empty means search the
// working directory) and merges NOTIFY_ environment variables over it.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8090")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("migrations_dir", "migrations")
	v.SetDefault("rabbit_queue", "notify.events")
	v.SetDefault("kafka_topic", "notifications")
	v.SetDefault("environment", "development")
	v.SetDefault("scan_interval", 6*time.Hour)
	v.SetDefault("scan_start_delay", time.Minute)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("notify")
	}

	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not make env-only keys visible to Unmarshal;
	// every field has to be bound so NOTIFY_DATABASE_URL and friends work
	// without a config file.
	for _, key := range []string{
		"http_addr", "metrics_addr",
		"database_url", "database_secret_arn", "migrations_dir",
		"redis_addr",
		"rabbit_url", "rabbit_queue",
		"kafka_brokers", "kafka_topic",
		"jwt_secret", "service_key_secret", "service_key_hashes",
		"resend_api_key",
		"otlp_endpoint", "environment",
		"scan_interval", "scan_start_delay",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DatabaseSecretARN == "" {
		return fmt.Errorf("one of database_url or database_secret_arn is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive")
	}
	return nil
}
