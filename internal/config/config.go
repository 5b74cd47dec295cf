// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the order cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	OrderTTL time.Duration
}

// QueueConfig holds the job dispatcher settings.
type QueueConfig struct {
	Dir              string
	MaxConcurrent    int
	OrdersPerMinute  int
	RetryMaxAttempts int
}

// MockConfig toggles the simulated venue/execution backends.
type MockConfig struct {
	Enabled bool
	Delay   time.Duration
}

// Config is the full engine configuration.
type Config struct {
	Port       int
	LogLevel   string
	Database   DatabaseConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Mock       MockConfig
	BuildDelay time.Duration
}

// Load reads configuration from the environment. Every value has a default
// suitable for local development.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DATABASE_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=order_execution_engine sslmode=disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ORDER_CACHE_TTL", "24h")

	v.SetDefault("QUEUE_DIR", "data/queue")
	v.SetDefault("MAX_CONCURRENT_ORDERS", 10)
	v.SetDefault("ORDERS_PER_MINUTE", 100)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)

	v.SetDefault("MOCK_EXECUTION", true)
	v.SetDefault("MOCK_DELAY_MS", 2000)
	v.SetDefault("BUILD_DELAY_MS", 500)

	return &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			OrderTTL: v.GetDuration("ORDER_CACHE_TTL"),
		},
		Queue: QueueConfig{
			Dir:              v.GetString("QUEUE_DIR"),
			MaxConcurrent:    v.GetInt("MAX_CONCURRENT_ORDERS"),
			OrdersPerMinute:  v.GetInt("ORDERS_PER_MINUTE"),
			RetryMaxAttempts: v.GetInt("RETRY_MAX_ATTEMPTS"),
		},
		Mock: MockConfig{
			Enabled: v.GetBool("MOCK_EXECUTION"),
			Delay:   time.Duration(v.GetInt("MOCK_DELAY_MS")) * time.Millisecond,
		},
		BuildDelay: time.Duration(v.GetInt("BUILD_DELAY_MS")) * time.Millisecond,
	}
}
