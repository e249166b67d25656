// Package config loads service configuration from the environment. A local
// .env file is honored when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the service.
type Config struct {
	RunAddress string
	LogLevel   string
	LogFormat  string

	// DatabaseURL selects the postgres store when set; empty means the
	// in-memory store.
	DatabaseURL string

	KafkaBrokerURL string
	KafkaTopic     string

	// StrictReads makes balance/history reads take the per-user gate.
	StrictReads bool
	// StoreMaxLatency caps the simulated per-call delay of the memory store.
	StoreMaxLatency time.Duration
	// AppendRetries bounds history append retries after a balance write.
	AppendRetries int
}

// Load reads the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RunAddress:      getEnvOrDefault("RUN_ADDRESS", ":8080"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "json"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		KafkaBrokerURL:  strings.TrimSpace(os.Getenv("KAFKA_BROKER_URL")),
		KafkaTopic:      getEnvOrDefault("KAFKA_TOPIC", "transaction_completed"),
		StrictReads:     getEnvAsBool("STRICT_READS", false),
		StoreMaxLatency: getEnvAsDuration("STORE_MAX_LATENCY", 300*time.Millisecond),
		AppendRetries:   getEnvAsInt("APPEND_RETRIES", 2),
	}
	return cfg, nil
}

// KafkaEnabled reports whether an event publisher should be wired.
func (c *Config) KafkaEnabled() bool { return c.KafkaBrokerURL != "" }

// KafkaBrokers splits the broker URL list.
func (c *Config) KafkaBrokers() []string { return strings.Split(c.KafkaBrokerURL, ",") }

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
