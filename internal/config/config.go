package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/matchcode/internal/configs/env"
)

const (
	BackendMongo = "mongo"
	BackendBolt  = "bolt"
)

// Config holds all configuration for the application
type Config struct {
	// Store
	StoreBackend string
	MongoURI     string
	MongoDBName  string
	BoltPath     string

	// Redis
	RedisHost               string
	RedisPassword           string
	IndexStreamKey          string
	IndexConsumerGroup      string
	IndexDeadLetterKey      string
	StreamRetentionDuration time.Duration

	// JWT
	JWTSecret string
	JWTIssuer string

	// Rate Limiting
	RateLimitRPS float64

	// Matching
	MaxApproximateDistance int
	MatchWorkers           int

	// Indexing
	IndexTimeout     time.Duration
	ScanFetchTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerPort  string
	MetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Store
	cfg.StoreBackend = env.GetEnv("STORE_BACKEND", BackendMongo)
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "matchcode")
	cfg.BoltPath = env.GetEnv("BOLT_PATH", "matchcode.db")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.IndexStreamKey = env.GetEnv("INDEX_STREAM_KEY", "matchcode:index:stream")
	cfg.IndexConsumerGroup = env.GetEnv("INDEX_CONSUMER_GROUP", "matchcode:index:group")
	cfg.IndexDeadLetterKey = env.GetEnv("INDEX_DEAD_LETTER_KEY", "matchcode:index:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")
	cfg.JWTIssuer = env.GetEnv("JWT_ISSUER", "matchcode")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Matching
	cfg.MaxApproximateDistance = env.GetEnvInt("MAX_APPROXIMATE_DISTANCE", 128)
	cfg.MatchWorkers = env.GetEnvInt("MATCH_WORKERS", 0)

	// Indexing
	timeoutMinutes := env.GetEnvInt("INDEX_TIMEOUT_MINUTES", 30)
	cfg.IndexTimeout = time.Duration(timeoutMinutes) * time.Minute
	cfg.ScanFetchTimeout = env.GetEnvDuration("SCAN_FETCH_TIMEOUT", 60*time.Second)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")
	cfg.LogFormat = env.GetEnv("LOG_FORMAT", "json")

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.MongoDBName == "" {
			return fmt.Errorf("MONGO_DB_NAME is required")
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendBolt, c.StoreBackend)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be greater than 0")
	}
	if c.MaxApproximateDistance < 0 || c.MaxApproximateDistance > 128 {
		return fmt.Errorf("MAX_APPROXIMATE_DISTANCE must be between 0 and 128")
	}
	if c.MatchWorkers < 0 {
		return fmt.Errorf("MATCH_WORKERS must not be negative")
	}
	if c.IndexTimeout <= 0 {
		return fmt.Errorf("INDEX_TIMEOUT_MINUTES must be greater than 0")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
	}
	return nil
}
