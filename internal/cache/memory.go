package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryProvider is an in-process LRU with a single TTL for every entry.
type MemoryProvider struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryProvider creates a bounded LRU. Per-call TTLs are ignored in favour of ttl.
func NewMemoryProvider(size int, ttl time.Duration) *MemoryProvider {
	if size <= 0 {
		size = 1024
	}
	return &MemoryProvider{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns a copy of the cached bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Del removes key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Close purges the cache.
func (m *MemoryProvider) Close() error {
	m.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (m *MemoryProvider) Len() int {
	return m.lru.Len()
}
