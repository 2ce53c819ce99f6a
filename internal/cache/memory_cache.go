package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryViewCache keeps JSON-encoded views in process memory.
type MemoryViewCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryViewCache() *MemoryViewCache {
	return &MemoryViewCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryViewCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.body, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryViewCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{body: body}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryViewCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
