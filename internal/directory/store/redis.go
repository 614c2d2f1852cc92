package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"residents/internal/directory/models"
	dErrors "residents/pkg/domain-errors"
)

const defaultRedisKeyPrefix = "residents:"

// Redis stores the append log as a list, the index as a hash and keeps a
// counter of LivesHere rows so counting does not scan the list. The three
// keys are only ever written together in one MULTI/EXEC.
type Redis struct {
	client   *redis.Client
	logKey   string
	indexKey string
	countKey string
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKeyPrefix namespaces the store keys, mainly for tests sharing a server.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *Redis) {
		s.logKey = prefix + "log"
		s.indexKey = prefix + "index"
		s.countKey = prefix + "lives_here"
	}
}

// NewRedis constructs a Redis-backed directory.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	s := &Redis{client: client}
	WithKeyPrefix(defaultRedisKeyPrefix)(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Append commits a single record.
func (s *Redis) Append(ctx context.Context, person *models.Person) error {
	return s.commit(ctx, []*models.Person{person})
}

func (s *Redis) commit(ctx context.Context, people []*models.Person) error {
	if len(people) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range people {
			payload, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal resident: %w", err)
			}
			pipe.RPush(ctx, s.logKey, payload)
			pipe.HSet(ctx, s.indexKey, p.Name, payload)
			if p.LivesHere() {
				pipe.Incr(ctx, s.countKey)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append resident: %w", err)
	}
	return nil
}

func (s *Redis) FindLatest(ctx context.Context, name string) (*models.Person, error) {
	payload, err := s.client.HGet(ctx, s.indexKey, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find resident: %w", err)
	}
	return decodePerson(payload)
}

func (s *Redis) List(ctx context.Context) ([]*models.Person, error) {
	payloads, err := s.client.LRange(ctx, s.logKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	out := make([]*models.Person, 0, len(payloads))
	for _, payload := range payloads {
		p, err := decodePerson([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Redis) CountLivesHere(ctx context.Context) (int, error) {
	count, err := s.client.Get(ctx, s.countKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count residents: %w", err)
	}
	return count, nil
}

func decodePerson(payload []byte) (*models.Person, error) {
	var p models.Person
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode resident: %w", err)
	}
	return &p, nil
}

// RedisTx serializes adds within this process and commits the staged appends
// in one MULTI/EXEC.
type RedisTx struct {
	mu      sync.Mutex
	store   *Redis
	timeout time.Duration
}

// NewRedisTx wraps store with a transaction runner.
func NewRedisTx(store *Redis) *RedisTx {
	return &RedisTx{store: store}
}

func (t *RedisTx) RunInTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	ctx, cancel, err := beginTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	staged := &stagedWriter{}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	return t.store.commit(ctx, staged.pending)
}
