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
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/asgardeo/cachecore/log"
)

const (
	boltLoggerComponentName = "BoltAdapter"

	// boltBucketName is the bbolt bucket holding the cache entries.
	boltBucketName = "entries"
	// boltProbeKey is written and read back at construction to detect an
	// unusable store.
	boltProbeKey = "__cachecore_probe__"
	// boltFileMode is the file mode of the bbolt database file.
	boltFileMode = 0o600
)

// BoltAdapter is a cache adapter persisted in a bbolt database. Reads are
// served from an in-memory mirror that is rehydrated from the store at
// construction and flushed back on an interval. When the store cannot be
// opened or fails its write/read probe, the adapter degrades silently to
// mirror-only behavior: construction never fails on that path.
type BoltAdapter struct {
	name       string
	defaultTTL time.Duration

	mu      sync.Mutex
	db      *bbolt.DB // nil when degraded to mirror-only
	mirror  map[string]*CacheEntry
	dirty   map[string]struct{}
	removed map[string]struct{}

	hitCount    int64
	missCount   int64
	errorCount  int64
	setCount    int64
	deleteCount int64

	flushDone   chan struct{}
	disposeOnce sync.Once
}

// NewBoltAdapter creates a persistent adapter backed by the bbolt database at
// path and starts its periodic mirror flush.
func NewBoltAdapter(name, path string, defaultTTL, flushInterval time.Duration) *BoltAdapter {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, boltLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, name))

	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	a := &BoltAdapter{
		name:       name,
		defaultTTL: defaultTTL,
		mirror:     make(map[string]*CacheEntry),
		dirty:      make(map[string]struct{}),
		removed:    make(map[string]struct{}),
		flushDone:  make(chan struct{}),
	}

	db, err := openBoltStore(path)
	if err != nil {
		logger.Warn("Persistent store unavailable, degrading to memory-only cache",
			log.String("path", path), log.Error(err))
	} else {
		a.db = db
		a.rehydrate()
	}

	go a.flushLoop(flushInterval)
	return a
}

// openBoltStore opens the database, ensures the bucket exists, and probes it
// with a write/read/delete cycle.
func openBoltStore(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, createErr := tx.CreateBucketIfNotExists([]byte(boltBucketName))
		if createErr != nil {
			return createErr
		}
		if putErr := b.Put([]byte(boltProbeKey), []byte("ok")); putErr != nil {
			return putErr
		}
		return b.Delete([]byte(boltProbeKey))
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// rehydrate loads the mirror from the store, discarding expired entries.
func (a *BoltAdapter) rehydrate() {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, boltLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))

	now := time.Now()
	loaded := 0
	err := a.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltBucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if unmarshalErr := json.Unmarshal(v, &entry); unmarshalErr != nil {
				logger.Warn("Skipping undecodable persisted entry", log.String("key", string(k)),
					log.Error(unmarshalErr))
				return nil
			}
			if entry.isExpiredAt(now) {
				return nil
			}
			a.mirror[string(k)] = &entry
			loaded++
			return nil
		})
	})
	if err != nil {
		logger.Warn("Failed to rehydrate mirror from persistent store", log.Error(err))
		a.errorCount++
		return
	}
	logger.Debug("Rehydrated mirror from persistent store", log.Int("entries", loaded))
}

// Name returns the adapter name.
func (a *BoltAdapter) Name() string {
	return a.name
}

// Get retrieves a value from the mirror. Reading an expired entry removes it
// and counts as a miss.
func (a *BoltAdapter) Get(_ context.Context, key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.mirror[key]
	if !exists {
		a.missCount++
		return nil, false
	}

	now := time.Now()
	if entry.isExpiredAt(now) {
		a.removeLocked(key)
		a.missCount++
		return nil, false
	}

	entry.LastAccessedAt = now
	entry.HitCount++
	delete(a.removed, key)
	a.dirty[key] = struct{}{}
	a.hitCount++
	return entry.Value, true
}

// Set stores a value in the mirror and marks it for the next flush.
func (a *BoltAdapter) Set(_ context.Context, key string, value any, opts CacheOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.mirror[key] = &CacheEntry{
		Key:            key,
		Value:          value,
		ExpiresAt:      resolveTTL(opts.TTL, a.defaultTTL, now),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       EntryMetadata{Tags: opts.Tags, Priority: resolvePriority(opts.Priority)},
	}
	delete(a.removed, key)
	a.dirty[key] = struct{}{}
	a.setCount++
	return nil
}

// Delete removes an entry from the mirror and marks the removal for the
// next flush.
func (a *BoltAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.mirror[key]; exists {
		a.removeLocked(key)
		a.deleteCount++
	}
	return nil
}

// Clear removes every entry from the mirror and marks all removals.
func (a *BoltAdapter) Clear(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key := range a.mirror {
		a.removeLocked(key)
	}
	return nil
}

// Has reports whether a live entry exists under key.
func (a *BoltAdapter) Has(_ context.Context, key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.mirror[key]
	return exists && !entry.IsExpired()
}

// Keys returns the keys of live entries matching the glob pattern.
func (a *BoltAdapter) Keys(_ context.Context, pattern string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(a.mirror))
	for key, entry := range a.mirror {
		if entry.isExpiredAt(now) || !matchKeyPattern(pattern, key) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// GetStats returns the adapter statistics computed over the mirror.
func (a *BoltAdapter) GetStats() CacheStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	totalOps := a.hitCount + a.missCount
	var hitRate float64
	if totalOps > 0 {
		hitRate = float64(a.hitCount) / float64(totalOps)
	}

	var oldest, newest time.Time
	for _, entry := range a.mirror {
		if oldest.IsZero() || entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
		if entry.CreatedAt.After(newest) {
			newest = entry.CreatedAt
		}
	}

	return CacheStats{
		Hits:        a.hitCount,
		Misses:      a.missCount,
		HitRate:     hitRate,
		Errors:      a.errorCount,
		Sets:        a.setCount,
		Deletes:     a.deleteCount,
		Size:        int64(len(a.mirror)),
		ItemCount:   len(a.mirror),
		OldestEntry: oldest,
		NewestEntry: newest,
	}
}

// Flush writes dirty mirror entries to the store and applies pending
// removals. A nil store makes this a no-op.
func (a *BoltAdapter) Flush() {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, boltLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))

	a.mu.Lock()
	if a.db == nil || (len(a.dirty) == 0 && len(a.removed) == 0) {
		a.mu.Unlock()
		return
	}

	pending := make(map[string][]byte, len(a.dirty))
	for key := range a.dirty {
		entry, exists := a.mirror[key]
		if !exists {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			logger.Warn("Failed to encode cache entry for persistence", log.String("key", key),
				log.Error(err))
			a.errorCount++
			continue
		}
		pending[key] = data
	}
	removals := make([]string, 0, len(a.removed))
	for key := range a.removed {
		removals = append(removals, key)
	}
	a.dirty = make(map[string]struct{})
	a.removed = make(map[string]struct{})
	db := a.db
	a.mu.Unlock()

	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltBucketName))
		if b == nil {
			return nil
		}
		for key, data := range pending {
			if putErr := b.Put([]byte(key), data); putErr != nil {
				return putErr
			}
		}
		for _, key := range removals {
			if delErr := b.Delete([]byte(key)); delErr != nil {
				return delErr
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("Failed to flush mirror to persistent store", log.Error(err))
		a.mu.Lock()
		a.errorCount++
		a.mu.Unlock()
	}
}

// Dispose stops the flush loop, performs a final flush, and closes the
// store. It is safe to call more than once.
func (a *BoltAdapter) Dispose() {
	a.disposeOnce.Do(func() {
		close(a.flushDone)
		a.Flush()

		a.mu.Lock()
		db := a.db
		a.db = nil
		a.mu.Unlock()

		if db != nil {
			if err := db.Close(); err != nil {
				log.GetLogger().With(log.String(log.LoggerKeyComponentName, boltLoggerComponentName),
					log.String(log.LoggerKeyAdapterName, a.name)).
					Warn("Failed to close persistent store", log.Error(err))
			}
		}
	})
}

// flushLoop runs the periodic mirror flush until Dispose.
func (a *BoltAdapter) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.flushDone:
			return
		}
	}
}

// removeLocked drops a key from the mirror and schedules its removal from
// the store. Caller holds the mutex.
func (a *BoltAdapter) removeLocked(key string) {
	delete(a.mirror, key)
	delete(a.dirty, key)
	a.removed[key] = struct{}{}
}
