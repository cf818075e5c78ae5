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
	"container/heap"
	"container/list"
	"context"
	"math/rand/v2"
	"path"
	"sync"
	"time"

	"github.com/asgardeo/cachecore/log"
)

const memoryLoggerComponentName = "InMemoryAdapter"

// lfuHeapItem represents an item in the LFU heap.
type lfuHeapItem struct {
	key        string
	hitCount   int64
	lastAccess time.Time
	index      int // Index in the heap
}

// lfuHeap implements heap.Interface for LFU eviction.
type lfuHeap []*lfuHeapItem

func (h lfuHeap) Len() int { return len(h) }

func (h lfuHeap) Less(i, j int) bool {
	// Primary: fewer hits come first
	if h[i].hitCount != h[j].hitCount {
		return h[i].hitCount < h[j].hitCount
	}
	// Tie-breaker: earlier access time comes first
	return h[i].lastAccess.Before(h[j].lastAccess)
}

func (h lfuHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *lfuHeap) Push(x any) {
	n := len(*h)
	item := x.(*lfuHeapItem)
	item.index = n
	*h = append(*h, item)
}

func (h *lfuHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// memoryEntry represents an entry in the in-memory adapter with the
// positional metadata needed by the eviction policies.
type memoryEntry struct {
	*CacheEntry
	accessElement   *list.Element
	creationElement *list.Element
	heapItem        *lfuHeapItem
}

// InMemoryAdapter is a map-backed cache adapter with TTL expiry and
// capacity-based eviction. A single mutex guards the whole
// check-evict-insert sequence.
type InMemoryAdapter struct {
	name           string
	maxEntries     int
	defaultTTL     time.Duration
	evictionPolicy EvictionPolicy

	mu            sync.Mutex
	entries       map[string]*memoryEntry
	accessOrder   *list.List // front = most recently accessed
	creationOrder *list.List // front = most recently created
	lfuHeap       *lfuHeap

	hitCount    int64
	missCount   int64
	errorCount  int64
	setCount    int64
	deleteCount int64
	evictCount  int64
	oldestEntry time.Time
	newestEntry time.Time

	sweepDone   chan struct{}
	disposeOnce sync.Once
}

// NewInMemoryAdapter creates a new in-memory adapter and starts its expiry
// sweep. Zero maxEntries, defaultTTL, or sweepInterval select the defaults;
// an unknown eviction policy falls back to LRU.
func NewInMemoryAdapter(name string, maxEntries int, defaultTTL time.Duration,
	evictionPolicy EvictionPolicy, sweepInterval time.Duration) *InMemoryAdapter {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, memoryLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, name))

	if maxEntries <= 0 {
		maxEntries = defaultCacheSize
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultCleanupInterval
	}
	switch evictionPolicy {
	case EvictionPolicyLRU, EvictionPolicyLFU, EvictionPolicyFIFO, EvictionPolicyRandom:
	default:
		logger.Warn("Unknown eviction policy, defaulting to LRU",
			log.String("evictionPolicy", string(evictionPolicy)))
		evictionPolicy = EvictionPolicyLRU
	}

	logger.Debug("Initializing in-memory adapter", log.String("evictionPolicy", string(evictionPolicy)),
		log.Int("maxEntries", maxEntries), log.Duration("ttl", defaultTTL))

	lfuHeapInstance := &lfuHeap{}
	heap.Init(lfuHeapInstance)

	a := &InMemoryAdapter{
		name:           name,
		maxEntries:     maxEntries,
		defaultTTL:     defaultTTL,
		evictionPolicy: evictionPolicy,
		entries:        make(map[string]*memoryEntry),
		accessOrder:    list.New(),
		creationOrder:  list.New(),
		lfuHeap:        lfuHeapInstance,
		sweepDone:      make(chan struct{}),
	}
	go a.sweepLoop(sweepInterval)

	return a
}

// Name returns the adapter name.
func (a *InMemoryAdapter) Name() string {
	return a.name
}

// Set adds or updates an entry. When the adapter is at capacity and the key
// is new, exactly one entry is evicted before the insertion.
func (a *InMemoryAdapter) Set(_ context.Context, key string, value any, opts CacheOptions) error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, memoryLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	expiresAt := resolveTTL(opts.TTL, a.defaultTTL, now)
	a.setCount++

	// Update existing entry in place.
	if existing, exists := a.entries[key]; exists {
		existing.Value = value
		existing.ExpiresAt = expiresAt
		existing.LastAccessedAt = now
		existing.Metadata = EntryMetadata{Tags: opts.Tags, Priority: resolvePriority(opts.Priority)}
		a.accessOrder.MoveToFront(existing.accessElement)
		if a.evictionPolicy == EvictionPolicyLFU && existing.heapItem != nil {
			existing.heapItem.lastAccess = now
			heap.Fix(a.lfuHeap, existing.heapItem.index)
		}
		return nil
	}

	if len(a.entries) >= a.maxEntries {
		logger.Debug("Cache at capacity, evicting an entry")
		a.evict()
	}

	entry := &CacheEntry{
		Key:            key,
		Value:          value,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       EntryMetadata{Tags: opts.Tags, Priority: resolvePriority(opts.Priority)},
	}

	var heapItem *lfuHeapItem
	if a.evictionPolicy == EvictionPolicyLFU {
		heapItem = &lfuHeapItem{key: key, lastAccess: now}
		heap.Push(a.lfuHeap, heapItem)
	}

	a.entries[key] = &memoryEntry{
		CacheEntry:      entry,
		accessElement:   a.accessOrder.PushFront(key),
		creationElement: a.creationOrder.PushFront(key),
		heapItem:        heapItem,
	}

	a.newestEntry = now
	if a.oldestEntry.IsZero() {
		a.oldestEntry = now
	}

	logger.Debug("Cache entry set", log.String("key", key))
	return nil
}

// Get retrieves a value by key. Reading an expired entry removes it and
// counts as a miss.
func (a *InMemoryAdapter) Get(_ context.Context, key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.entries[key]
	if !exists {
		a.missCount++
		return nil, false
	}

	now := time.Now()
	if entry.isExpiredAt(now) {
		a.deleteEntry(key, entry)
		a.recomputeAgeBounds()
		a.missCount++
		return nil, false
	}

	entry.LastAccessedAt = now
	entry.HitCount++
	a.accessOrder.MoveToFront(entry.accessElement)
	a.hitCount++

	if a.evictionPolicy == EvictionPolicyLFU && entry.heapItem != nil {
		entry.heapItem.hitCount = entry.HitCount
		entry.heapItem.lastAccess = now
		heap.Fix(a.lfuHeap, entry.heapItem.index)
	}

	return entry.Value, true
}

// Has reports whether a live entry exists under key without touching its
// access bookkeeping.
func (a *InMemoryAdapter) Has(_ context.Context, key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.entries[key]
	return exists && !entry.IsExpired()
}

// Keys returns the keys of live entries matching the glob pattern.
func (a *InMemoryAdapter) Keys(_ context.Context, pattern string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(a.entries))
	for key, entry := range a.entries {
		if entry.isExpiredAt(now) {
			continue
		}
		if !matchKeyPattern(pattern, key) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Delete removes an entry from the cache.
func (a *InMemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, exists := a.entries[key]; exists {
		a.deleteEntry(key, entry)
		a.recomputeAgeBounds()
		a.deleteCount++
	}
	return nil
}

// Clear removes all entries from the cache.
func (a *InMemoryAdapter) Clear(_ context.Context) error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, memoryLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = make(map[string]*memoryEntry)
	a.accessOrder.Init()
	a.creationOrder.Init()
	a.lfuHeap = &lfuHeap{}
	heap.Init(a.lfuHeap)
	a.oldestEntry = time.Time{}
	a.newestEntry = time.Time{}

	logger.Debug("Cleared all entries in the cache")
	return nil
}

// GetStats returns the adapter statistics. Size tracks the entry count since
// byte-accurate accounting is out of scope.
func (a *InMemoryAdapter) GetStats() CacheStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	totalOps := a.hitCount + a.missCount
	var hitRate float64
	if totalOps > 0 {
		hitRate = float64(a.hitCount) / float64(totalOps)
	}

	return CacheStats{
		Hits:        a.hitCount,
		Misses:      a.missCount,
		HitRate:     hitRate,
		Errors:      a.errorCount,
		Sets:        a.setCount,
		Deletes:     a.deleteCount,
		Size:        int64(len(a.entries)),
		ItemCount:   len(a.entries),
		OldestEntry: a.oldestEntry,
		NewestEntry: a.newestEntry,
	}
}

// Dispose stops the expiry sweep. It is safe to call more than once.
func (a *InMemoryAdapter) Dispose() {
	a.disposeOnce.Do(func() {
		close(a.sweepDone)
	})
}

// CleanupExpired removes all expired entries from the cache.
func (a *InMemoryAdapter) CleanupExpired() {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, memoryLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for key, entry := range a.entries {
		if entry.isExpiredAt(now) {
			a.deleteEntry(key, entry)
			cleaned++
		}
	}
	if cleaned > 0 {
		a.recomputeAgeBounds()
		logger.Debug("Expired cache entries cleaned", log.Int("count", cleaned))
	}
}

// sweepLoop runs the periodic expiry sweep until Dispose.
func (a *InMemoryAdapter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.CleanupExpired()
		case <-a.sweepDone:
			return
		}
	}
}

// evict removes exactly one entry according to the eviction policy.
func (a *InMemoryAdapter) evict() {
	var key string
	var entry *memoryEntry

	switch a.evictionPolicy {
	case EvictionPolicyLFU:
		if a.lfuHeap.Len() == 0 {
			return
		}
		item := heap.Pop(a.lfuHeap).(*lfuHeapItem)
		key = item.key
		entry = a.entries[key]
	case EvictionPolicyFIFO:
		oldest := a.creationOrder.Back()
		if oldest == nil {
			return
		}
		key = oldest.Value.(string)
		entry = a.entries[key]
	case EvictionPolicyRandom:
		if len(a.entries) == 0 {
			return
		}
		pick := rand.IntN(len(a.entries))
		for k, e := range a.entries {
			if pick == 0 {
				key, entry = k, e
				break
			}
			pick--
		}
	default: // LRU
		oldest := a.accessOrder.Back()
		if oldest == nil {
			return
		}
		key = oldest.Value.(string)
		entry = a.entries[key]
	}

	if entry == nil {
		return
	}
	a.deleteEntry(key, entry)
	a.recomputeAgeBounds()
	a.evictCount++

	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, memoryLoggerComponentName),
		log.String(log.LoggerKeyAdapterName, a.name))
	logger.Debug("Cache entry evicted", log.String("key", key),
		log.String("evictionPolicy", string(a.evictionPolicy)))
}

// deleteEntry removes an entry from the map and every ordering structure.
func (a *InMemoryAdapter) deleteEntry(key string, entry *memoryEntry) {
	delete(a.entries, key)
	a.accessOrder.Remove(entry.accessElement)
	a.creationOrder.Remove(entry.creationElement)
	if a.evictionPolicy == EvictionPolicyLFU && entry.heapItem != nil && entry.heapItem.index >= 0 {
		heap.Remove(a.lfuHeap, entry.heapItem.index)
	}
}

// recomputeAgeBounds re-scans the live set for the oldest and newest entry
// timestamps. Removal is a bookkeeping operation, not a hot path.
func (a *InMemoryAdapter) recomputeAgeBounds() {
	a.oldestEntry = time.Time{}
	a.newestEntry = time.Time{}
	for _, entry := range a.entries {
		if a.oldestEntry.IsZero() || entry.CreatedAt.Before(a.oldestEntry) {
			a.oldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(a.newestEntry) {
			a.newestEntry = entry.CreatedAt
		}
	}
}

// matchKeyPattern matches a key against a glob pattern. An empty pattern
// matches every key.
func matchKeyPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	matched, err := path.Match(pattern, key)
	return err == nil && matched
}
