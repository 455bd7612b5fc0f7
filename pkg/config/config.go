package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DatabaseConfig represents database configuration.
// Driver is "postgres" or "sqlite"; Path is only used by sqlite.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"`
	Debug    bool   `mapstructure:"debug"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// LLMConfig selects the language model provider used by the intake pipeline
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// IntakeConfig holds the triage confidence thresholds
type IntakeConfig struct {
	SuggestThreshold   float64 `mapstructure:"suggest_threshold"`
	AutoPlaceThreshold float64 `mapstructure:"auto_place_threshold"`
}

// RedisConfig configures the webhook deduper. An empty URL disables it.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig toggles the OpenTelemetry tracer provider
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("database.driver", getEnv("DB_DRIVER", "postgres"))
	v.SetDefault("database.host", getEnv("PG_HOST", "localhost"))
	v.SetDefault("database.port", getEnvInt("PG_PORT", 5432))
	v.SetDefault("database.user", getEnv("PG_USER", "postgres"))
	v.SetDefault("database.password", getEnv("PG_PASSWORD", ""))
	v.SetDefault("database.name", getEnv("PG_DATABASE", "boardroom_dev"))
	v.SetDefault("database.ssl_mode", getEnv("PG_SSL_MODE", "disable"))
	v.SetDefault("database.path", getEnv("SQLITE_PATH", "boardroom.db"))
	v.SetDefault("database.debug", false)
	v.SetDefault("server.port", getEnvInt("SERVER_PORT", 8080))
	v.SetDefault("server.host", getEnv("SERVER_HOST", "0.0.0.0"))
	v.SetDefault("llm.provider", getEnv("LLM_PROVIDER", "openrouter"))
	v.SetDefault("llm.model", getEnv("LLM_MODEL", ""))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("intake.suggest_threshold", 0.85)
	v.SetDefault("intake.auto_place_threshold", 0.92)
	v.SetDefault("redis.url", getEnv("REDIS_URL", ""))
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "boardroom")

	// BOARDROOM_LLM_API_KEY overrides llm.api_key, and so on
	v.SetEnvPrefix("boardroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf(
			"unsupported database driver %q (supported: postgres, sqlite)", c.Database.Driver)
	}
	if c.Intake.SuggestThreshold <= 0 || c.Intake.SuggestThreshold > 1 {
		return fmt.Errorf("intake.suggest_threshold must be in (0, 1], got %v", c.Intake.SuggestThreshold)
	}
	if c.Intake.AutoPlaceThreshold < c.Intake.SuggestThreshold || c.Intake.AutoPlaceThreshold > 1 {
		return fmt.Errorf("intake.auto_place_threshold must be in [suggest_threshold, 1], got %v",
			c.Intake.AutoPlaceThreshold)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	return nil
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
