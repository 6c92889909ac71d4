package identity

import (
	"context"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pseudonym:"

type RedisReserver struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisReserver(rdb goredis.UniversalClient, prefix string) *RedisReserver {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisReserver{rdb: rdb, prefix: prefix}
}

func (r *RedisReserver) Reserve(ctx context.Context, pseudonym string) (bool, error) {
	return r.rdb.SetNX(ctx, r.prefix+pseudonym, 1, 0).Result()
}

// MemoryReserver tracks names for a single process.
type MemoryReserver struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func NewMemoryReserver(taken ...string) *MemoryReserver {
	m := &MemoryReserver{taken: make(map[string]struct{}, len(taken))}
	for _, name := range taken {
		m.taken[name] = struct{}{}
	}
	return m
}

func (m *MemoryReserver) Reserve(_ context.Context, pseudonym string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.taken[pseudonym]; ok {
		return false, nil
	}
	m.taken[pseudonym] = struct{}{}
	return true, nil
}
