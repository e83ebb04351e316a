package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bimmerbailey/driftprep/internal/config"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "driftprep:feature_stats"

// RedisClient is the subset of a Redis client used by RedisStore.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// RedisStore keeps statistics under a single Redis key so several
// processes can share what one of them learned.
type RedisStore struct {
	client RedisClient
	key    string
	ttl    time.Duration
}

// NewRedisStore wraps client. An empty key uses DefaultRedisKey; ttl 0
// keeps the key forever.
func NewRedisStore(client RedisClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// DialRedisStore connects to the server described by cfg.
func DialRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client, err := NewGoRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client, cfg.Key, cfg.TTL), nil
}

// Key returns the Redis key holding the statistics.
func (s *RedisStore) Key() string {
	return s.key
}

// Save stores data under the key.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Load fetches the key. A missing key yields ErrNoStats.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GoRedisClient adapts a go-redis client to RedisClient.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient connects to Redis and verifies the connection with PING.
func NewGoRedisClient(ctx context.Context, cfg config.RedisConfig) (*GoRedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return &GoRedisClient{client: client}, nil
}

// Set stores value with ttl.
func (g *GoRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value of key, or ErrNoStats if it does not exist.
func (g *GoRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := g.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoStats
	}
	return val, err
}

// Close closes the connection pool.
func (g *GoRedisClient) Close() error {
	return g.client.Close()
}
