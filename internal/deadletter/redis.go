package deadletter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"prodcons/internal/queue"
)

// RedisSink pushes each item onto the tail of a Redis list.
type RedisSink struct {
	client *redis.Client
	key    string
	owns   bool

	mu     sync.Mutex
	closed bool
}

// NewRedisSink uses an existing client. Close does not close the client.
func NewRedisSink(client *redis.Client, key string) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{client: client, key: key}
}

// DialRedis connects to addr and checks the connection with PING.
func DialRedis(ctx context.Context, addr, key string) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("deadletter: cannot connect to Redis at %s: %w", addr, err)
	}

	s := NewRedisSink(rdb, key)
	s.owns = true
	return s, nil
}

// Key returns the list key.
func (s *RedisSink) Key() string {
	return s.key
}

// Append runs RPUSH for item.
func (s *RedisSink) Append(ctx context.Context, item queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.client.RPush(ctx, s.key, item.String()).Err(); err != nil {
		return fmt.Errorf("deadletter: rpush %s: %w", s.key, err)
	}
	return nil
}

// Items returns the whole list in push order.
func (s *RedisSink) Items(ctx context.Context) ([]string, error) {
	return s.client.LRange(ctx, s.key, 0, -1).Result()
}

// Close marks the sink closed and closes the client if DialRedis created it.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owns {
		return s.client.Close()
	}
	return nil
}
