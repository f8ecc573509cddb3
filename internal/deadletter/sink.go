package deadletter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prodcons/internal/queue"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

const (
	DefaultPath     = "logging/deadletter.txt"
	DefaultRedisKey = "prodcons:deadletter"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("deadletter: sink closed")

// Sink persists items that were drained instead of processed.
// Implementations must be safe for concurrent Append calls and must keep
// the order in which Append calls return.
type Sink interface {
	Append(ctx context.Context, item queue.Item) error
	Close() error
}

// Reader is implemented by sinks that can list what they stored.
type Reader interface {
	Items(ctx context.Context) ([]string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend   string `yaml:"backend" json:"backend"`
	Path      string `yaml:"path" json:"path"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	RedisKey  string `yaml:"redis_key" json:"redis_key"`
}

// DefaultConfig returns the file backend at DefaultPath.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendFile,
		Path:     DefaultPath,
		RedisKey: DefaultRedisKey,
	}
}

// Validate checks that the chosen backend has what it needs.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", BackendFile:
		if c.Path == "" {
			return errors.New("deadletter: file backend requires a path")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("deadletter: redis backend requires redis_addr")
		}
	case BackendBadger:
	default:
		return fmt.Errorf("deadletter: unknown backend %q", c.Backend)
	}
	return nil
}

// Open builds the sink described by cfg. The returned sink owns any
// connection or database it opened.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendRedis:
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisKey)
	case BackendBadger:
		db, err := OpenBadger(cfg.Path)
		if err != nil {
			return nil, err
		}
		s, err := NewBadgerSink(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.ownsDB = true
		return s, nil
	default:
		return NewFileSink(cfg.Path), nil
	}
}
