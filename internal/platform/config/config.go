package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "healthexchange/pkg/platform/strings"
)

// Server captures process-level configuration. FromEnv keeps main lean; every
// field has a development default so `go run ./cmd/server` works standalone
// with in-memory stores.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	TokenTTL      time.Duration

	// PostgresDSN switches persistence from in-memory to PostgreSQL when set.
	PostgresDSN string

	// RedisURL enables the Redis-backed rate limiter when set; otherwise the
	// in-memory limiter is used.
	RedisURL string

	RateLimitPerMinute int

	Kafka KafkaConfig
}

// KafkaConfig configures the audit outbox relay. Relaying is disabled when
// Brokers is empty.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("HEALTHEXCHANGE_ADDR", ":8080"),
		LogLevel:           envOr("HEALTHEXCHANGE_LOG_LEVEL", "info"),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:           durationOr("TOKEN_TTL", time.Hour),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: intOr("RATE_LIMIT_PER_MINUTE", 120),
		Kafka: KafkaConfig{
			AuditTopic:    envOr("KAFKA_AUDIT_TOPIC", "healthexchange.audit"),
			RelayInterval: durationOr("KAFKA_RELAY_INTERVAL", 5*time.Second),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
