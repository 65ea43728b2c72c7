// Package config loads application configuration from a YAML file with
// environment variable overrides. Secrets live in env vars (or a local
// .env in development); the YAML carries structure and defaults.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DevMode bool   `yaml:"dev_mode"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection settings used for rate limiting
// and deployment locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventsConfig holds the SQS event bus settings.
type EventsConfig struct {
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

// ArchiveConfig holds the S3 memory archive settings. An empty bucket
// disables archiving; the database remains the system of record.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// DeliveryConfig holds outbound send settings.
type DeliveryConfig struct {
	Region    string `yaml:"region"`
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
}

// GenerationConfig holds model and rate limit settings for signal
// extraction and sequence writing.
type GenerationConfig struct {
	Region        string `yaml:"region"`
	ModelID       string `yaml:"model_id"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// Load reads configuration from a YAML file and applies defaults. A
// missing file is not an error; defaults plus env overrides are enough to
// run in development.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Events.Region == "" {
		cfg.Events.Region = "us-west-2"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.Events.Region
	}
	if cfg.Delivery.Region == "" {
		cfg.Delivery.Region = cfg.Events.Region
	}
	if cfg.Delivery.FromName == "" {
		cfg.Delivery.FromName = "Prospect Pipeline"
	}
	if cfg.Generation.Region == "" {
		cfg.Generation.Region = cfg.Events.Region
	}
	if cfg.Generation.ModelID == "" {
		cfg.Generation.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Generation.RatePerMinute == 0 {
		cfg.Generation.RatePerMinute = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development" {
		cfg.Server.DevMode = true
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EVENTS_QUEUE_URL"); v != "" {
		cfg.Events.QueueURL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Events.Region = v
		cfg.Archive.Region = v
		cfg.Delivery.Region = v
		cfg.Generation.Region = v
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("DELIVERY_FROM_NAME"); v != "" {
		cfg.Delivery.FromName = v
	}
	if v := os.Getenv("DELIVERY_FROM_EMAIL"); v != "" {
		cfg.Delivery.FromEmail = v
	}
	if v := os.Getenv("GENERATION_MODEL_ID"); v != "" {
		cfg.Generation.ModelID = v
	}
	if v := os.Getenv("GENERATION_RATE_PER_MINUTE"); v != "" {
		if rpm, err := strconv.Atoi(v); err == nil && rpm > 0 {
			cfg.Generation.RatePerMinute = rpm
		}
	}

	return cfg, nil
}
