package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	RestProxyURL          string        `mapstructure:"rest_proxy_url"`
	ConsumerGroup         string        `mapstructure:"consumer_group"`
	ConsumerInstance      string        `mapstructure:"consumer_instance"`
	AcceptHeader          string        `mapstructure:"accept_header"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
// With nothing set, the result targets http://localhost:8082 group cg1 instance ci1.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "rest-records-fetcher")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("rest_proxy_url", "http://localhost:8082")
	v.SetDefault("consumer_group", "cg1")
	v.SetDefault("consumer_instance", "ci1")
	v.SetDefault("accept_header", "application/vnd.kafka.json.v2+json")
	v.SetDefault("request_timeout_seconds", 0) // no timeout
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64(time.Hour/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.RestProxyURL = strings.TrimSpace(c.RestProxyURL)
	c.ConsumerGroup = strings.TrimSpace(c.ConsumerGroup)
	c.ConsumerInstance = strings.TrimSpace(c.ConsumerInstance)
	c.AcceptHeader = strings.TrimSpace(c.AcceptHeader)
	c.PublishersFile = strings.TrimSpace(c.PublishersFile)

	if c.RestProxyURL == "" {
		return fmt.Errorf("invalid rest_proxy_url (must not be empty)")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("invalid consumer_group (must not be empty)")
	}
	if c.ConsumerInstance == "" {
		return fmt.Errorf("invalid consumer_instance (must not be empty)")
	}
	if c.AcceptHeader == "" {
		return fmt.Errorf("invalid accept_header (must not be empty)")
	}

	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be zero or positive seconds)")
	}
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
