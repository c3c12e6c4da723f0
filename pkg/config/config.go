package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Signer     SignerConfig     `mapstructure:"signer"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	JWKS       JWKSConfig       `mapstructure:"jwks"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host" default:"0.0.0.0"`
	Port int    `mapstructure:"port" default:"8080"`
}

// ChainConfig identifies the single chain this deployment serves
type ChainConfig struct {
	Served intent.Chain `mapstructure:"served"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"intent_relayer"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// RedisConfig contains the durable queue connection settings
type RedisConfig struct {
	Address   string `mapstructure:"address" default:"localhost:6379"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix" default:"relayer:intents"`
}

// QueueConfig contains retry state machine settings
type QueueConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts" default:"3"`
	BackoffMs         int           `mapstructure:"backoff_ms" default:"2000"`
	Concurrency       int           `mapstructure:"concurrency" default:"4"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" default:"5m"`
}

// Backoff returns the base retry delay
func (q QueueConfig) Backoff() time.Duration {
	return time.Duration(q.BackoffMs) * time.Millisecond
}

// PollerConfig contains completion poller settings
type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval" default:"30s"`
	MaxWait  time.Duration `mapstructure:"max_wait" default:"2h"`
}

// SettlementConfig contains the external swap service settings
type SettlementConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// SignerConfig contains key-derivation service settings
type SignerConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	BasePath string        `mapstructure:"base_path"`
	KeyType  string        `mapstructure:"key_type" default:"ed25519"`
	Timeout  time.Duration `mapstructure:"timeout" default:"30s"`
}

// ExecutionConfig contains the chain execution service settings
type ExecutionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// AssetsConfig points at the asset registry file
type AssetsConfig struct {
	RegistryPath string `mapstructure:"registry_path" default:"assets.yaml"`
}

// JWKSConfig contains JWKS configuration for admin JWT validation
type JWKSConfig struct {
	URL    string `mapstructure:"url"`
	Issuer string `mapstructure:"issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled" default:"true"`
	MetricsPort int  `mapstructure:"metrics_port" default:"9090"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Fill zero-valued fields from struct tags
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validate(config *Config) error {
	if !config.Chain.Served.Valid() {
		return fmt.Errorf("chain.served must be one of the supported chains")
	}
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if config.Settlement.BaseURL == "" {
		return fmt.Errorf("settlement.base_url is required")
	}
	if config.Signer.BaseURL == "" {
		return fmt.Errorf("signer.base_url is required")
	}
	if config.Signer.BasePath == "" {
		return fmt.Errorf("signer.base_path is required")
	}
	if config.Execution.BaseURL == "" {
		return fmt.Errorf("execution.base_url is required")
	}
	if config.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
