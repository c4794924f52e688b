// Package store provides the key/value persistence abstraction the engine
// runs on: named sets of records plus atomic numeric counters, backed by
// Redis through go-redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/riskengine"
)

// Store is the persistence port every engine component depends on. A "set"
// is a named collection (transactions, client_profiles, anomaly_rules, ...);
// within a set, records are addressed by key.
type Store interface {
	Put(ctx context.Context, set, key string, record any) error
	Get(ctx context.Context, set, key string, dest any) (bool, error)
	Delete(ctx context.Context, set, key string) error
	ScanAll(ctx context.Context, set string, visit func(key string, raw []byte) error) error
	AddAndGet(ctx context.Context, set, key, field string, delta float64) (float64, error)
}

// RedisStore is the Redis-backed Store. Each set is one Redis hash keyed by
// record key, so ScanAll can use HSCAN instead of a blocking KEYS sweep.
type RedisStore struct {
	client *redis.Client
}

// New wraps an existing go-redis client. The engine shares the client the
// rest of the service already opened rather than dialing a second pool.
func New(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, set, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return riskengine.StoreError("marshal record", err)
	}
	if err := s.client.HSet(ctx, set, key, data).Err(); err != nil {
		return riskengine.StoreError(fmt.Sprintf("put %s/%s", set, key), err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, set, key string, dest any) (bool, error) {
	data, err := s.client.HGet(ctx, set, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, riskengine.StoreError(fmt.Sprintf("get %s/%s", set, key), err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, riskengine.StoreError(fmt.Sprintf("unmarshal %s/%s", set, key), err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, set, key string) error {
	if err := s.client.HDel(ctx, set, key).Err(); err != nil {
		return riskengine.StoreError(fmt.Sprintf("delete %s/%s", set, key), err)
	}
	return nil
}

// ScanAll walks every record in set via HSCAN, cursoring until exhausted.
func (s *RedisStore) ScanAll(ctx context.Context, set string, visit func(key string, raw []byte) error) error {
	var cursor uint64
	for {
		var (
			batch []string
			err   error
		)
		batch, cursor, err = s.client.HScan(ctx, set, cursor, "", 256).Result()
		if err != nil {
			return riskengine.StoreError(fmt.Sprintf("scan %s", set), err)
		}
		for i := 0; i+1 < len(batch); i += 2 {
			if err := visit(batch[i], []byte(batch[i+1])); err != nil {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// counterSuffix separates a counter hash (one per set+key) from the record
// hash so field-level atomic increments never race a Put/Get record write.
const counterSuffix = ":counters"

// AddAndGet atomically increments field within the counter hash for set/key
// and returns the post-increment value. Used for hourly/daily transaction
// and amount counters, which must be correct under concurrent evaluation of
// the same client's transactions.
func (s *RedisStore) AddAndGet(ctx context.Context, set, key, field string, delta float64) (float64, error) {
	hashKey := set + counterSuffix + ":" + key
	v, err := s.client.HIncrByFloat(ctx, hashKey, field, delta).Result()
	if err != nil {
		return 0, riskengine.StoreError(fmt.Sprintf("addAndGet %s/%s/%s", set, key, field), err)
	}
	return v, nil
}
