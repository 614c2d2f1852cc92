package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"RESIDENTS_ADDR", "STORE_BACKEND", "EVENT_SINK", "KAFKA_BROKERS", "OUTBOX_POLL_INTERVAL", "KAFKA_BREAKER_THRESHOLD", "KAFKA_BREAKER_COOLDOWN", "AUDITOR_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, SinkLog, cfg.EventSink)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, int32(1), cfg.Kafka.Partitions)
	assert.Equal(t, 5, cfg.Kafka.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Kafka.BreakerCooldown)
	assert.Equal(t, ":8081", cfg.AuditorAddr)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RESIDENTS_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("EVENT_SINK", "outbox")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, SinkOutbox, cfg.EventSink)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "invalid ints fall back to the default")
}

func TestValidate(t *testing.T) {
	base := func() Server {
		return Server{
			Backend:   BackendMemory,
			EventSink: SinkLog,
			Kafka:     KafkaConfig{Topic: "residents.person-added", Partitions: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Server)
		wantErr string
	}{
		{"memory with log sink", func(*Server) {}, ""},
		{"postgres without url", func(s *Server) { s.Backend = BackendPostgres }, "DATABASE_URL"},
		{"redis without url", func(s *Server) { s.Backend = BackendRedis }, "REDIS_URL"},
		{"unknown backend", func(s *Server) { s.Backend = "sqlite" }, "unknown STORE_BACKEND"},
		{"kafka without brokers", func(s *Server) { s.EventSink = SinkKafka }, "KAFKA_BROKERS"},
		{"kafka with brokers", func(s *Server) {
			s.EventSink = SinkKafka
			s.Kafka.Brokers = []string{"localhost:9092"}
		}, ""},
		{"kafka with several partitions", func(s *Server) {
			s.EventSink = SinkKafka
			s.Kafka.Brokers = []string{"localhost:9092"}
			s.Kafka.Partitions = 3
		}, "KAFKA_TOPIC_PARTITIONS must be 1"},
		{"outbox with several partitions", func(s *Server) {
			s.Backend = BackendPostgres
			s.Postgres.URL = "postgres://localhost/residents"
			s.EventSink = SinkOutbox
			s.Kafka.Brokers = []string{"localhost:9092"}
			s.Kafka.Partitions = 2
		}, "KAFKA_TOPIC_PARTITIONS"},
		{"outbox on memory", func(s *Server) { s.EventSink = SinkOutbox }, "requires the postgres backend"},
		{"outbox on postgres", func(s *Server) {
			s.Backend = BackendPostgres
			s.Postgres.URL = "postgres://localhost/residents"
			s.EventSink = SinkOutbox
			s.Kafka.Brokers = []string{"localhost:9092"}
		}, ""},
		{"unknown sink", func(s *Server) { s.EventSink = "webhook" }, "unknown EVENT_SINK"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestKafkaValidate(t *testing.T) {
	valid := KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Partitions: 1}
	assert.NoError(t, valid.Validate())

	noTopic := valid
	noTopic.Topic = ""
	assert.ErrorContains(t, noTopic.Validate(), "KAFKA_TOPIC")

	spread := valid
	spread.Partitions = 4
	assert.ErrorContains(t, spread.Validate(), "must be 1, got 4")

	assert.ErrorContains(t, KafkaConfig{Topic: "t", Partitions: 1}.Validate(), "KAFKA_BROKERS")
}
