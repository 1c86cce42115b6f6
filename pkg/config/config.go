package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Quote engine
	Quotes QuotesConfig

	// Quote source
	Feed FeedConfig

	// Outbound publishers
	Redis RedisConfig
	Kafka KafkaConfig

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// QuotesConfig holds the engine limits
type QuotesConfig struct {
	HistoryLimit int
	RankingSize  int
}

// FeedConfig holds quote source configuration
type FeedConfig struct {
	Source       string // simulator, replay
	Interval     time.Duration
	Stagger      time.Duration
	InitialDelay time.Duration
	MaxStepPct   float64
	BandPct      float64
	Seed         int64
	StaleAfter   time.Duration

	UniverseFile string
	ReplayFile   string
	ReplayRate   float64 // quotes per second
	ReplayLoop   bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Enabled  bool

	// Sliding window limit for POST /api/quotes, per client IP
	IngestLimit  int
	IngestWindow time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Load reads configuration from environment variables
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Quotes: QuotesConfig{
			HistoryLimit: getEnvAsInt("QUOTE_HISTORY_LIMIT", 20),
			RankingSize:  getEnvAsInt("QUOTE_RANKING_SIZE", 5),
		},

		Feed: FeedConfig{
			Source:       getEnv("FEED_SOURCE", "simulator"),
			Interval:     getEnvAsDuration("FEED_INTERVAL", "2s"),
			Stagger:      getEnvAsDuration("FEED_STAGGER", "100ms"),
			InitialDelay: getEnvAsDuration("FEED_INITIAL_DELAY", "1s"),
			MaxStepPct:   getEnvAsFloat("FEED_MAX_STEP_PCT", 0.01),
			BandPct:      getEnvAsFloat("FEED_BAND_PCT", 0.15),
			Seed:         int64(getEnvAsInt("FEED_SEED", 0)),
			StaleAfter:   getEnvAsDuration("FEED_STALE_AFTER", "10s"),
			UniverseFile: getEnv("UNIVERSE_FILE", ""),
			ReplayFile:   getEnv("REPLAY_FILE", ""),
			ReplayRate:   getEnvAsFloat("REPLAY_RATE", 2.5),
			ReplayLoop:   getEnvAsBool("REPLAY_LOOP", true),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "quoteboard"),
			TTL:      getEnvAsDuration("REDIS_TTL", "1m"),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),

			IngestLimit:  getEnvAsInt("INGEST_RATE_LIMIT", 600),
			IngestWindow: getEnvAsDuration("INGEST_RATE_WINDOW", "1m"),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "quotes"),
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
		},

		// Logging
		LogLevel:      getEnv("LOG_LEVEL", "debug"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.Quotes.HistoryLimit < 1 {
		return fmt.Errorf("QUOTE_HISTORY_LIMIT must be positive")
	}
	if c.Quotes.RankingSize < 1 {
		return fmt.Errorf("QUOTE_RANKING_SIZE must be positive")
	}

	switch c.Feed.Source {
	case "simulator":
	case "replay":
		if c.Feed.ReplayFile == "" {
			return fmt.Errorf("REPLAY_FILE is required when FEED_SOURCE=replay")
		}
	default:
		return fmt.Errorf("FEED_SOURCE must be one of: simulator, replay")
	}

	if c.Feed.Interval <= 0 {
		return fmt.Errorf("FEED_INTERVAL must be positive")
	}
	if c.Feed.MaxStepPct <= 0 || c.Feed.BandPct <= 0 {
		return fmt.Errorf("FEED_MAX_STEP_PCT and FEED_BAND_PCT must be positive")
	}

	if c.Redis.Enabled && (c.Redis.IngestLimit < 1 || c.Redis.IngestWindow <= 0) {
		return fmt.Errorf("INGEST_RATE_LIMIT and INGEST_RATE_WINDOW must be positive")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
