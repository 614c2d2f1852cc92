package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names the directory store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// EventSink names where PersonAdded notifications go.
type EventSink string

const (
	// SinkLog writes one structured audit line per add.
	SinkLog EventSink = "log"
	// SinkKafka produces each notification synchronously to Kafka.
	SinkKafka EventSink = "kafka"
	// SinkOutbox records notifications in the Postgres outbox inside the add
	// transaction; the outbox worker relays them to Kafka.
	SinkOutbox EventSink = "outbox"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	AuditorAddr     string
	Backend         Backend
	EventSink       EventSink
	LogLevel        string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	Postgres        PostgresConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Outbox          OutboxConfig
}

// PostgresConfig configures the database/sql pool.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the franz-go producer and consumer clients.
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	Partitions       int32
	Replication      int16
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// OutboxConfig configures the outbox relay worker.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            getEnv("RESIDENTS_ADDR", ":8080"),
		AuditorAddr:     getEnv("AUDITOR_ADDR", ":8081"),
		Backend:         Backend(getEnv("STORE_BACKEND", string(BackendMemory))),
		EventSink:       EventSink(getEnv("EVENT_SINK", string(SinkLog))),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "residents:"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "residents.person-added"),
			// A single partition keeps every notification in apply order.
			Partitions:       int32(getInt("KAFKA_TOPIC_PARTITIONS", 1)),
			Replication:      int16(getInt("KAFKA_TOPIC_REPLICATION", 1)),
			BreakerThreshold: getInt("KAFKA_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  getDuration("KAFKA_BREAKER_COOLDOWN", 30*time.Second),
		},
		Outbox: OutboxConfig{
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
	}
}

// Validate rejects backend and sink combinations that cannot run.
func (s Server) Validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendPostgres:
		if s.Postgres.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
	}

	switch s.EventSink {
	case SinkLog:
	case SinkKafka:
		if err := s.Kafka.Validate(); err != nil {
			return fmt.Errorf("kafka event sink: %w", err)
		}
	case SinkOutbox:
		if s.Backend != BackendPostgres {
			return errors.New("the outbox event sink requires the postgres backend")
		}
		if err := s.Kafka.Validate(); err != nil {
			return fmt.Errorf("outbox relay: %w", err)
		}
	default:
		return fmt.Errorf("unknown EVENT_SINK %q", s.EventSink)
	}
	return nil
}

// Validate checks the settings shared by the producers and the auditor. The
// topic must have exactly one partition: records are keyed by name, so more
// partitions would only keep per-name order and the rebuilt append log would
// no longer match the order adds were applied in.
func (k KafkaConfig) Validate() error {
	if len(k.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if k.Topic == "" {
		return errors.New("KAFKA_TOPIC is required")
	}
	if k.Partitions != 1 {
		return fmt.Errorf("KAFKA_TOPIC_PARTITIONS must be 1, got %d", k.Partitions)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
