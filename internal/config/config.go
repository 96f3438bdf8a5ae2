package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	MarketData MarketDataConfig
	Backtest   BacktestConfig
	Auth       AuthConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	ServiceKey string
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MarketDataConfig selects where OHLCV bars are read from: the service's
// own database or the platform's historical data service over HTTP.
type MarketDataConfig struct {
	Source     string // "database" or "http"
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

// BacktestConfig holds engine defaults and limits
type BacktestConfig struct {
	DefaultInitialCapital float64
	DefaultCommissionRate float64
	MaxSymbols            int
	RunTimeout            time.Duration
}

// AuthConfig holds JWT validation settings. Token issuance is owned by the
// user service; this service only validates.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// RedisConfig holds the optional result cache settings
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Market data defaults
	v.SetDefault("marketData.source", "database")
	v.SetDefault("marketData.url", "http://historical-data-service:8081")
	v.SetDefault("marketData.timeout", "30s")
	v.SetDefault("marketData.maxRetries", 3)

	// Backtest defaults
	v.SetDefault("backtest.defaultInitialCapital", 100000.0)
	v.SetDefault("backtest.defaultCommissionRate", 0.001)
	v.SetDefault("backtest.maxSymbols", 20)
	v.SetDefault("backtest.runTimeout", "5m")

	// Auth defaults
	v.SetDefault("auth.enabled", true)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka.topic", "backtest-events")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "redis:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("serviceKey", "backtest-service-key")
}
