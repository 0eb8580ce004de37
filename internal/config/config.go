package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Retrieval   RetrievalConfig `mapstructure:"retrieval"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Sources     SourcesConfig   `mapstructure:"sources"`
	Model       ModelConfig     `mapstructure:"model"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Security    SecurityConfig  `mapstructure:"security"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

type RetrievalConfig struct {
	RequestTimeout string `mapstructure:"request_timeout"`
	RequestDelay   string `mapstructure:"request_delay"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryDelay     string `mapstructure:"retry_delay"`
	Workers        int    `mapstructure:"workers"`
	Schedule       string `mapstructure:"schedule"`
}

type StorageConfig struct {
	OutputDirectory string `mapstructure:"output_directory"`
}

type SourcesConfig struct {
	Directory   string `mapstructure:"directory"`
	EntsoeToken string `mapstructure:"entsoe_token" json:"-" yaml:"-"`
}

type ModelConfig struct {
	Path string `mapstructure:"path"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry  string `mapstructure:"jwt_expiry"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("sources.entsoe_token", "ENTSOE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ENTSOE_API_KEY environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	environment := strings.ToLower(config.Environment)

	// Validate JWT secret in non-development environments
	if environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	// Validate JWT expiry duration
	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	// Validate bcrypt cost parameter
	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	// Validate the retrieval durations so schedule misconfiguration
	// surfaces at startup instead of on the first run.
	for key, value := range map[string]string{
		"request_timeout": config.Retrieval.RequestTimeout,
		"request_delay":   config.Retrieval.RequestDelay,
		"retry_delay":     config.Retrieval.RetryDelay,
		"schedule":        config.Retrieval.Schedule,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("invalid retrieval %s duration: %w", key, err)
		}
	}
	if config.Retrieval.Workers < 1 {
		return nil, fmt.Errorf("retrieval workers must be at least 1, got %d", config.Retrieval.Workers)
	}

	switch config.Telemetry.Exporter {
	case "stdout", "otlp":
	default:
		return nil, fmt.Errorf("unsupported telemetry exporter %q", config.Telemetry.Exporter)
	}

	// Update config with normalized environment
	config.Environment = environment

	return &config, nil
}

// Durations returns the parsed retrieval durations. Load validated them,
// so parse failures here mean the config was mutated after loading.
func (c RetrievalConfig) Durations() (timeout, delay, retryDelay, schedule time.Duration, err error) {
	if timeout, err = time.ParseDuration(c.RequestTimeout); err != nil {
		return
	}
	if delay, err = time.ParseDuration(c.RequestDelay); err != nil {
		return
	}
	if retryDelay, err = time.ParseDuration(c.RetryDelay); err != nil {
		return
	}
	schedule, err = time.ParseDuration(c.Schedule)
	return
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "demandcast")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "6h")

	// Retrieval
	viper.SetDefault("retrieval.request_timeout", "10s")
	viper.SetDefault("retrieval.request_delay", "1s")
	viper.SetDefault("retrieval.max_retries", 3)
	viper.SetDefault("retrieval.retry_delay", "5s")
	viper.SetDefault("retrieval.workers", 4)
	viper.SetDefault("retrieval.schedule", "24h")

	// Storage
	viper.SetDefault("storage.output_directory", "data")

	// Sources
	viper.SetDefault("sources.directory", "configs/sources")
	viper.SetDefault("sources.entsoe_token", "")

	// Model
	viper.SetDefault("model.path", "configs/model.json")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
}
