package cache

import (
	"context"
	"sync"

	"catchcert/pkg/platform/sentinel"
)

// MemoryClient is an in-process cache client for unit suites and deployments
// without Redis. Same contract as RedisClient: no TTL, explicit invalidation.
type MemoryClient struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryClient creates an empty in-memory cache client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{entries: make(map[string][]byte)}
}

func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (c *MemoryClient) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = stored
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len reports the number of cached entries; used by tests.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
