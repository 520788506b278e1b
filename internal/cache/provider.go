package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider defines the cache operations used for label-lookup responses.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Del is a no-op for the noop cache.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }

// Options selects and configures a Provider.
type Options struct {
	Enabled bool
	Backend string
	Size    int
	TTL     time.Duration
	Valkey  ValkeyConfig
}

// New builds the Provider described by opts. A disabled cache yields NoopProvider.
func New(opts Options) (Provider, error) {
	if !opts.Enabled {
		return NoopProvider{}, nil
	}
	switch opts.Backend {
	case "", "memory":
		return NewMemoryProvider(opts.Size, opts.TTL), nil
	case "valkey", "redis":
		provider, err := NewValkeyProvider(opts.Valkey)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
