package models

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr      string        `yaml:"server_addr"`
	DatabaseURL     string        `yaml:"database_url"`
	StoragePath     string        `yaml:"storage_path"`
	KafkaBroker     string        `yaml:"kafka_broker"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	KafkaGroupID    string        `yaml:"kafka_group_id"`
	MaxUploadMB     int64         `yaml:"max_upload_mb"`
	StatusCacheTTL  time.Duration `yaml:"status_cache_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	GinMode         string        `yaml:"gin_mode"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is tolerated so the
// service can be configured from the environment alone.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DATABASE_URL": &c.DatabaseURL,
		"SERVER_ADDR":  &c.ServerAddr,
		"STORAGE_PATH": &c.StoragePath,
		"KAFKA_BROKER": &c.KafkaBroker,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.StoragePath == "" {
		c.StoragePath = "./public/images"
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "bird-catalog-events"
	}
	if c.KafkaGroupID == "" {
		c.KafkaGroupID = "bird-catalog-janitor"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 10
	}
	if c.StatusCacheTTL == 0 {
		c.StatusCacheTTL = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
}

// Validate reports the first setting that makes the config unusable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required (config file or DATABASE_URL)")
	}
	if c.MaxUploadMB < 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("gin_mode must be debug, release or test, got %q", c.GinMode)
	}
	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
