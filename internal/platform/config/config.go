package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean; development defaults let the server boot
// with in-memory stores and no external services.
type Config struct {
	Addr string

	// DatabaseURL enables the postgres stores when set; empty keeps the
	// in-memory backends.
	DatabaseURL string

	// RedisURL enables the redis idempotency ledger when set.
	RedisURL string

	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string
	JWTIssuer     string

	RequestTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:           getenv("DATASPACE_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AuditTopic:     getenv("AUDIT_TOPIC", "dataspace.audit"),
		JWTIssuer:      getenv("JWT_ISSUER", "dataspace-backend"),
		RequestTimeout: 30 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.JWTSigningKey = os.Getenv("JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Development default, must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
