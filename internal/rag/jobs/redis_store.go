// Redis-backed Store (C22), grounded on the teacher's
// internal/skills/redis_cache.go: a redis.UniversalClient, a key-per-record
// JSON blob, and a scan-driven listing since the set of in-flight job ids is
// expected to be small and short-lived.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ragforge:jobs:"

// RedisStore is a durable Store backed by Redis, used to rehydrate Records
// at process startup so RecoverOrphans has something to scan.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an already-constructed client. Ping is not called
// here; the caller is expected to have validated connectivity (matching the
// teacher's NewRedisSkillsCache, which pings once at construction and lets
// every subsequent call degrade independently).
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

// SaveRecord writes the record with no expiry: job history persists until a
// caller explicitly deletes it, unlike the skills cache's TTL'd entries.
func (s *RedisStore) SaveRecord(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jobs: marshal record: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.ID), data, 0).Err()
}

// DeleteRecord removes a record's durable copy.
func (s *RedisStore) DeleteRecord(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// LoadRecords scans every key under the job-record namespace and unmarshals
// it. Used once at startup, before RecoverOrphans, to rebuild the in-memory
// view a crash wiped out.
func (s *RedisStore) LoadRecords(ctx context.Context) ([]Record, error) {
	var out []Record
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("jobs: load record %q: %w", iter.Val(), err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("jobs: unmarshal record %q: %w", iter.Val(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("jobs: scan records: %w", err)
	}
	return out, nil
}
