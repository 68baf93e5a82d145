package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Alerts   AlertsConfig
	LogLevel string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. When Redis is unreachable the
// engine falls back to in-process counters and digest queues.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// KafkaConfig holds the outbox used for email and SMS delivery. No brokers
// means those channels are not registered.
type KafkaConfig struct {
	Brokers    []string
	EmailTopic string
	SMSTopic   string
}

// AlertsConfig holds alert engine and background worker settings
type AlertsConfig struct {
	DefaultsFile         string
	AutoResolveInterval  time.Duration
	DailyDigestInterval  time.Duration
	WeeklyDigestInterval time.Duration
	DispatchTimeout      time.Duration
	PersistQueueSize     int
	ClosedAlertRetention time.Duration
	PerformanceChannel   string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},

		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "trading_journal"),
			User:     getEnvOrDefault("DB_USER", "journal"),
			Password: getEnvOrDefault("DB_PASSWORD", "journal"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		},

		Kafka: KafkaConfig{
			Brokers:    getEnvList("KAFKA_BROKERS"),
			EmailTopic: getEnvOrDefault("KAFKA_EMAIL_TOPIC", "alerts.email"),
			SMSTopic:   getEnvOrDefault("KAFKA_SMS_TOPIC", "alerts.sms"),
		},

		Alerts: AlertsConfig{
			DefaultsFile:         getEnvOrDefault("ALERT_DEFAULTS_FILE", ""),
			AutoResolveInterval:  getEnvDuration("ALERT_AUTO_RESOLVE_INTERVAL", time.Hour),
			DailyDigestInterval:  getEnvDuration("ALERT_DAILY_DIGEST_INTERVAL", 24*time.Hour),
			WeeklyDigestInterval: getEnvDuration("ALERT_WEEKLY_DIGEST_INTERVAL", 7*24*time.Hour),
			DispatchTimeout:      getEnvDuration("ALERT_DISPATCH_TIMEOUT", 30*time.Second),
			PersistQueueSize:     getEnvInt("ALERT_PERSIST_QUEUE_SIZE", 1024),
			ClosedAlertRetention: getEnvDuration("ALERT_CLOSED_RETENTION", 90*24*time.Hour),
			PerformanceChannel:   getEnvOrDefault("ALERT_PERFORMANCE_CHANNEL", "performance:updates"),
		},

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("90s", "1h30m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
