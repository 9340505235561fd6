package storage

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const limiterShards = 64

type rateLimitRecord struct {
	count       int
	windowStart time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	records map[string]*rateLimitRecord
}

// MemoryLimiter is a fixed-window rate limiter for single-instance
// deployments. Keys are sharded so unrelated IPs do not contend on one lock;
// within a shard the count-and-compare runs under the shard mutex, so
// concurrent requests from the same IP can never observe the same count.
type MemoryLimiter struct {
	shards [limiterShards]*limiterShard
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{limit: limit, window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i] = &limiterShard{records: make(map[string]*rateLimitRecord)}
	}
	return l
}

func (l *MemoryLimiter) shard(key string) *limiterShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%limiterShards]
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	s := l.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) > l.window {
		s.records[key] = &rateLimitRecord{count: 1, windowStart: now}
		return true, nil
	}

	rec.count++
	return rec.count <= l.limit, nil
}

// MemoryLinkageStore tracks account/IP linkage in process memory.
type MemoryLinkageStore struct {
	mu      sync.Mutex
	devices map[string]map[string]struct{}
}

func NewMemoryLinkageStore() *MemoryLinkageStore {
	return &MemoryLinkageStore{devices: make(map[string]map[string]struct{})}
}

func (s *MemoryLinkageStore) ObserveDevice(_ context.Context, ip, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.devices[ip] == nil {
		s.devices[ip] = make(map[string]struct{})
	}
	s.devices[ip][userID] = struct{}{}
	return nil
}

func (s *MemoryLinkageStore) CountLinkedAccounts(_ context.Context, ip string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices[ip]), nil
}
