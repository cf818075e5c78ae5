/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asgardeo/cachecore/log"
)

const redisLoggerComponentName = "RedisAdapter"

// RedisAdapter is a cache adapter backed by a shared Redis instance. All
// operations fail soft: when Redis is unreachable, reads degrade to misses
// and writes are silently discarded, counted in the adapter statistics.
type RedisAdapter struct {
	name       string
	keyPrefix  string
	defaultTTL time.Duration
	rdb        *redis.Client

	mu          sync.Mutex
	hitCount    int64
	missCount   int64
	errorCount  int64
	setCount    int64
	deleteCount int64

	disposeOnce sync.Once
}

// NewRedisAdapter creates a Redis-backed adapter. Keys are namespaced with
// keyPrefix to keep the adapter's keyspace separate from other users of the
// same instance.
func NewRedisAdapter(name, addr, password string, db int, keyPrefix string,
	defaultTTL time.Duration) *RedisAdapter {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if keyPrefix == "" {
		keyPrefix = name + ":"
	}

	return &RedisAdapter{
		name:       name,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Name returns the adapter name.
func (a *RedisAdapter) Name() string {
	return a.name
}

// Get retrieves a value by key. Connection errors and undecodable payloads
// degrade to a miss.
func (a *RedisAdapter) Get(ctx context.Context, key string) (any, bool) {
	data, err := a.rdb.Get(ctx, a.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.countError("Failed to read from redis", key, err)
		}
		a.count(func() { a.missCount++ })
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		a.countError("Failed to decode redis cache entry", key, err)
		a.count(func() { a.missCount++ })
		return nil, false
	}
	if entry.IsExpired() {
		_ = a.rdb.Del(ctx, a.keyPrefix+key).Err()
		a.count(func() { a.missCount++ })
		return nil, false
	}

	a.count(func() { a.hitCount++ })
	return entry.Value, true
}

// Set stores a value under key. Errors are discarded after being counted.
func (a *RedisAdapter) Set(ctx context.Context, key string, value any, opts CacheOptions) error {
	now := time.Now()
	entry := CacheEntry{
		Key:            key,
		Value:          value,
		ExpiresAt:      resolveTTL(opts.TTL, a.defaultTTL, now),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       EntryMetadata{Tags: opts.Tags, Priority: resolvePriority(opts.Priority)},
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		a.countError("Failed to encode cache entry for redis", key, err)
		return nil
	}

	var expiration time.Duration
	if !entry.ExpiresAt.IsZero() {
		expiration = time.Until(entry.ExpiresAt)
	}
	if err := a.rdb.Set(ctx, a.keyPrefix+key, data, expiration).Err(); err != nil {
		a.countError("Failed to write to redis", key, err)
		return nil
	}

	a.count(func() { a.setCount++ })
	return nil
}

// Delete removes the entry under key.
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.rdb.Del(ctx, a.keyPrefix+key).Err(); err != nil {
		a.countError("Failed to delete from redis", key, err)
		return nil
	}
	a.count(func() { a.deleteCount++ })
	return nil
}

// Clear removes every entry in the adapter's keyspace.
func (a *RedisAdapter) Clear(ctx context.Context) error {
	keys, err := a.rdb.Keys(ctx, a.keyPrefix+"*").Result()
	if err != nil {
		a.countError("Failed to enumerate redis keys", "", err)
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	if err := a.rdb.Del(ctx, keys...).Err(); err != nil {
		a.countError("Failed to clear redis keyspace", "", err)
	}
	return nil
}

// Has reports whether an entry exists under key.
func (a *RedisAdapter) Has(ctx context.Context, key string) bool {
	n, err := a.rdb.Exists(ctx, a.keyPrefix+key).Result()
	if err != nil {
		a.countError("Failed to check redis key", key, err)
		return false
	}
	return n > 0
}

// Keys returns the keys matching the glob pattern within the adapter's
// keyspace, with the namespace prefix stripped.
func (a *RedisAdapter) Keys(ctx context.Context, pattern string) []string {
	if pattern == "" {
		pattern = "*"
	}
	raw, err := a.rdb.Keys(ctx, a.keyPrefix+pattern).Result()
	if err != nil {
		a.countError("Failed to enumerate redis keys", "", err)
		return nil
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, a.keyPrefix))
	}
	return keys
}

// GetStats returns the adapter statistics. Entry ages are not tracked since
// the keyspace is shared and remote.
func (a *RedisAdapter) GetStats() CacheStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	totalOps := a.hitCount + a.missCount
	var hitRate float64
	if totalOps > 0 {
		hitRate = float64(a.hitCount) / float64(totalOps)
	}
	return CacheStats{
		Hits:    a.hitCount,
		Misses:  a.missCount,
		HitRate: hitRate,
		Errors:  a.errorCount,
		Sets:    a.setCount,
		Deletes: a.deleteCount,
	}
}

// Ping checks the Redis connection.
func (a *RedisAdapter) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

// Dispose closes the underlying Redis client. It is safe to call more than
// once.
func (a *RedisAdapter) Dispose() {
	a.disposeOnce.Do(func() {
		if err := a.rdb.Close(); err != nil {
			log.GetLogger().With(log.String(log.LoggerKeyComponentName, redisLoggerComponentName),
				log.String(log.LoggerKeyAdapterName, a.name)).
				Warn("Failed to close redis client", log.Error(err))
		}
	})
}

func (a *RedisAdapter) count(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn()
}

func (a *RedisAdapter) countError(msg, key string, err error) {
	a.count(func() { a.errorCount++ })
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, redisLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))
	if key != "" {
		logger.Warn(msg, log.String("key", key), log.Error(err))
		return
	}
	logger.Warn(msg, log.Error(err))
}
