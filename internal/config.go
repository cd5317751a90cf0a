package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cache backends understood by OpenStore
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds the complete runtime configuration of the story progress pipeline
type Config struct {
	// GW2 API settings
	APIKey          string        `json:"-" env:"GW2_API_KEY"`
	APIBase         string        `json:"api_base" env:"GW2_API_BASE" envDefault:"https://api.guildwars2.com/v2"`
	RequestInterval time.Duration `json:"request_interval" env:"GW2_REQUEST_INTERVAL" envDefault:"100ms"`
	HTTPTimeout     time.Duration `json:"http_timeout" env:"GW2_HTTP_TIMEOUT" envDefault:"30s"`

	// Cache store settings
	CacheBackend string       `json:"cache_backend" env:"GW2_CACHE_BACKEND" envDefault:"memory"`
	SQLitePath   string       `json:"sqlite_path" env:"GW2_SQLITE_PATH" envDefault:"gw2_cache.db"`
	Redis        *RedisConfig `json:"redis"`

	// Status classification rules, empty uses the built-in defaults
	RulesFile string `json:"rules_file" env:"GW2_RULES_FILE"`

	Log LogConfig `json:"log"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		APIBase:         "https://api.guildwars2.com/v2",
		RequestInterval: 100 * time.Millisecond,
		HTTPTimeout:     30 * time.Second,
		CacheBackend:    BackendMemory,
		SQLitePath:      "gw2_cache.db",
		Redis:           DefaultRedisConfig(),
		Log:             DefaultLogConfig(),
	}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadConfig reads an optional dotenv file and then the environment.
// Variables already present in the environment are never overwritten by the file.
func LoadConfig(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if info, err := os.Stat(dotenvPath); err == nil && !info.IsDir() {
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
			}
		}
	}

	config := DefaultConfig()
	if err := ParseEnv(config); err != nil {
		return nil, err
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration parameters
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if !strings.HasPrefix(config.APIBase, "http://") && !strings.HasPrefix(config.APIBase, "https://") {
		return fmt.Errorf("api base must be an http(s) URL, got %q", config.APIBase)
	}

	if config.RequestInterval < 0 {
		return fmt.Errorf("request interval cannot be negative, got %v", config.RequestInterval)
	}

	if config.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %v", config.HTTPTimeout)
	}

	switch config.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if config.Redis == nil {
			return fmt.Errorf("redis backend selected without redis configuration")
		}
		if err := validateRedisConfig(config.Redis); err != nil {
			return err
		}
	case BackendSQLite:
		if config.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want memory, redis or sqlite)", config.CacheBackend)
	}

	return validateLogConfig(&config.Log)
}
