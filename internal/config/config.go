package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full service configuration
type Config struct {
	Port     int
	LogLevel string
	Env      string
	DB       DBConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Reminder ReminderConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds the Kafka configuration for the notification pipeline
type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
	ConsumerGroup      string
}

// CatalogConfig points at the menu/catalog service that supplies meal prices
type CatalogConfig struct {
	BaseURL string
}

// ReminderConfig controls the pickup-deadline reminder scheduler
type ReminderConfig struct {
	LeadTime     time.Duration
	PollInterval time.Duration
}

// getEnv retrieves an environment variable or the given default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))

	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))

	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	reminderLead, err := time.ParseDuration(getEnv("REMINDER_LEAD_TIME", "15m"))

	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_LEAD_TIME: %w", err)
	}

	reminderPoll, err := time.ParseDuration(getEnv("REMINDER_POLL_INTERVAL", "1m"))

	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_POLL_INTERVAL: %w", err)
	}

	return &Config{
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "preorders"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:            strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "order-notifications"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "preorder-api"),
		},
		Catalog: CatalogConfig{
			BaseURL: getEnv("CATALOG_URL", "http://localhost:8081"),
		},
		Reminder: ReminderConfig{
			LeadTime:     reminderLead,
			PollInterval: reminderPoll,
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
