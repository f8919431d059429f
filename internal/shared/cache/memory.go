package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local cache backed by go-cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory builds a Memory cache; defaultTTL applies when Set is given ttl <= 0.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), raw...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

var _ Cache = (*Memory)(nil)
