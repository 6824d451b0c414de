// Package cache はwebhookイベントの重複排除ストアを提供する。
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultEventTTL = 72 * time.Hour

// RedisEventStore は SETNX で最初の1回だけ true を返す
type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventStore(client *redis.Client, ttl time.Duration) *RedisEventStore {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &RedisEventStore{client: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

func (s *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.client.SetNX(ctx, eventKey(eventID), "1", s.ttl).Result()
}

// 処理に失敗したら消して再送を受けられるようにする
func (s *RedisEventStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, eventKey(eventID)).Err()
}

// MemoryEventStore は単一プロセス用
type MemoryEventStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryEventStore(ttl time.Duration) *MemoryEventStore {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &MemoryEventStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.seen[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	s.seen[eventID] = now.Add(s.ttl)

	//期限切れを掃除
	for id, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, id)
		}
	}
	return true, nil
}

func (s *MemoryEventStore) Forget(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}
