package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "catchcert/pkg/platform/strings"
)

// Config aggregates process-level configuration so main stays lean.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration for the ops endpoints.
type Server struct {
	Addr string
}

// PostgresConfig configures the durable document store.
type PostgresConfig struct {
	URL string
}

// RedisConfig configures the draft cache. An empty URL means Redis is not
// configured and the process falls back to an in-memory cache client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit publisher. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envOr("CATCHCERT_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			URL: envOr("CATCHCERT_POSTGRES_URL", "postgres://localhost:5432/catchcert?sslmode=disable"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CATCHCERT_REDIS_URL"),
			PoolSize:     envInt("CATCHCERT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CATCHCERT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CATCHCERT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CATCHCERT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CATCHCERT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.DedupeAndTrim(strings.Split(os.Getenv("CATCHCERT_KAFKA_BROKERS"), ",")),
			Topic:   envOr("CATCHCERT_KAFKA_AUDIT_TOPIC", "catchcert.audit"),
			Buffer:  envInt("CATCHCERT_KAFKA_AUDIT_BUFFER", 256),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
