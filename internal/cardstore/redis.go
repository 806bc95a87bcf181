package cardstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, e.g. "cardbot:card:"
}

// RedisStore keeps each document in a string key "<prefix><name>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cardstore: redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cardstore: redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

// Name implements Store.
func (s *RedisStore) Name() string { return BackendRedis }

// Key returns the redis key for a document name.
func (s *RedisStore) Key(name string) string { return s.prefix + name }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.Key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("cardstore: redis get %s: %w", name, err)
	}
	return data, nil
}

// Put implements Writer. Keys never expire.
func (s *RedisStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("cardstore: redis set %s: %w", name, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }

// NewRedisFromClient wraps an existing client. The caller keeps ownership of
// connection setup; Close still closes the client.
func NewRedisFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}
