// Package envbox is a reference implementation of the shared-log service:
// one JSON array per environment, replaced whole on every write.
package envbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Box stores the raw JSON array of each environment.
type Box interface {
	Load(ctx context.Context, envID string) ([]byte, error) // nil when the env is unknown
	Store(ctx context.Context, envID string, value []byte) error
	Close() error
}

type MemoryBox struct {
	mu   sync.RWMutex
	envs map[string][]byte
}

func NewMemoryBox() *MemoryBox {
	return &MemoryBox{envs: make(map[string][]byte)}
}

func (b *MemoryBox) Load(_ context.Context, envID string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.envs[envID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBox) Store(_ context.Context, envID string, value []byte) error {
	b.mu.Lock()
	b.envs[envID] = append([]byte(nil), value...)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBox) Close() error { return nil }

const redisKeyPrefix = "envbox:"

// RedisBox keeps each environment under envbox:<env_id>.
type RedisBox struct {
	client *redis.Client
}

// NewRedisBox connects to redisURL and verifies the connection.
func NewRedisBox(redisURL string) (*RedisBox, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisBoxWithClient(client), nil
}

// NewRedisBoxWithClient wraps an already configured client. The box owns it.
func NewRedisBoxWithClient(client *redis.Client) *RedisBox {
	return &RedisBox{client: client}
}

func (b *RedisBox) Load(ctx context.Context, envID string) ([]byte, error) {
	v, err := b.client.Get(ctx, redisKeyPrefix+envID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load env %s: %w", envID, err)
	}
	return v, nil
}

func (b *RedisBox) Store(ctx context.Context, envID string, value []byte) error {
	if err := b.client.Set(ctx, redisKeyPrefix+envID, value, 0).Err(); err != nil {
		return fmt.Errorf("store env %s: %w", envID, err)
	}
	return nil
}

func (b *RedisBox) Close() error {
	return b.client.Close()
}
