// Package config builds the process configuration from environment variables
// so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything the event backbone process needs to start.
type Config struct {
	// Addr is the listen address of the operational HTTP surface (audit API,
	// metrics, health).
	Addr string
	// ServiceName is stamped as the source on events this process publishes.
	ServiceName string

	Kafka    Kafka
	Postgres Postgres
	Redis    Redis
	Consumer Consumer
}

// Kafka configures the broker connection. With no seed brokers the process
// runs on the in-memory broker, which suits local development.
type Kafka struct {
	Brokers    []string
	ClientID   string
	Partitions int32
}

// Postgres configures the relational store for processed events and the audit
// trail. An empty DSN switches both to their in-memory implementations.
type Postgres struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis configures the optional Redis-backed processed-event store.
type Redis struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MarkerTTL    time.Duration
}

// Consumer tunes every consumer group this process runs.
type Consumer struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	UnitTimeout  time.Duration
}

// FromEnv reads configuration from the environment, applying development
// defaults for anything unset.
func FromEnv() Config {
	return Config{
		Addr:        envOr("BANK_EVENTS_ADDR", ":8080"),
		ServiceName: envOr("BANK_EVENTS_SERVICE_NAME", "bank-events"),
		Kafka: Kafka{
			Brokers:    splitList(os.Getenv("BANK_EVENTS_KAFKA_BROKERS")),
			ClientID:   envOr("BANK_EVENTS_KAFKA_CLIENT_ID", "bank-events"),
			Partitions: int32(envInt("BANK_EVENTS_KAFKA_PARTITIONS", 4)),
		},
		Postgres: Postgres{
			DSN:          os.Getenv("BANK_EVENTS_POSTGRES_DSN"),
			MaxOpenConns: envInt("BANK_EVENTS_POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("BANK_EVENTS_POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: Redis{
			URL:          os.Getenv("BANK_EVENTS_REDIS_URL"),
			DialTimeout:  envDuration("BANK_EVENTS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("BANK_EVENTS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("BANK_EVENTS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			MarkerTTL:    envDuration("BANK_EVENTS_REDIS_MARKER_TTL", 0),
		},
		Consumer: Consumer{
			MaxAttempts:  envInt("BANK_EVENTS_CONSUMER_MAX_ATTEMPTS", 5),
			RetryBackoff: envDuration("BANK_EVENTS_CONSUMER_RETRY_BACKOFF", 100*time.Millisecond),
			UnitTimeout:  envDuration("BANK_EVENTS_CONSUMER_UNIT_TIMEOUT", 10*time.Second),
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

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
