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
	"sync"
	"time"

	"github.com/asgardeo/cachecore/config"
	"github.com/asgardeo/cachecore/event"
	"github.com/asgardeo/cachecore/log"
)

const managerLoggerComponentName = "CacheManager"

// responseTimeRing is a capped ring buffer of operation latency samples.
type responseTimeRing struct {
	samples [responseTimeSampleSize]time.Duration
	count   int
	next    int
}

func (r *responseTimeRing) add(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

func (r *responseTimeRing) average() time.Duration {
	if r.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < r.count; i++ {
		total += r.samples[i]
	}
	return total / time.Duration(r.count)
}

// CacheManager routes cache domains to storage adapters, aggregates their
// statistics, records operation latencies, and publishes best-effort
// lifecycle events.
type CacheManager struct {
	mu             sync.RWMutex
	adapters       map[string]CacheAdapter
	domainAdapters map[CacheDomain]string
	defaultAdapter string
	timings        map[CacheDomain]*responseTimeRing
	publisher      event.Publisher
	health         *CacheHealthMonitor
	disposed       bool
}

// NewCacheManager creates a manager with the given default adapter. The
// publisher may be nil, in which case no lifecycle events are emitted.
func NewCacheManager(defaultAdapter CacheAdapter, publisher event.Publisher) *CacheManager {
	cm := &CacheManager{
		adapters:       make(map[string]CacheAdapter),
		domainAdapters: make(map[CacheDomain]string),
		timings:        make(map[CacheDomain]*responseTimeRing),
		publisher:      publisher,
	}
	cm.adapters[defaultAdapter.Name()] = defaultAdapter
	cm.defaultAdapter = defaultAdapter.Name()
	return cm
}

// NewCacheManagerFromConfig builds a manager from configuration: an in-memory
// default adapter plus a per-domain in-memory adapter for every configured
// cache property, and the bolt and redis adapters when configured. With
// caching disabled the manager routes everything to a no-op adapter.
func NewCacheManagerFromConfig(cfg *config.CacheConfig, publisher event.Publisher) *CacheManager {
	if cfg.Disabled {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
			Warn("Caching is disabled by configuration, all operations are no-ops")
		return NewCacheManager(NewNoopAdapter("noop"), publisher)
	}

	defaultAdapter := NewInMemoryAdapter(
		"memory",
		cfg.Size,
		time.Duration(cfg.TTL)*time.Second,
		EvictionPolicy(cfg.EvictionPolicy),
		time.Duration(cfg.CleanupInterval)*time.Second,
	)
	cm := NewCacheManager(defaultAdapter, publisher)

	if cfg.Adapters.Bolt.Path != "" {
		cm.RegisterAdapter(NewBoltAdapter(
			"bolt",
			cfg.Adapters.Bolt.Path,
			time.Duration(cfg.TTL)*time.Second,
			time.Duration(cfg.Adapters.Bolt.FlushInterval)*time.Second,
		))
	}
	if cfg.Adapters.Redis.Address != "" {
		cm.RegisterAdapter(NewRedisAdapter(
			"redis",
			cfg.Adapters.Redis.Address,
			cfg.Adapters.Redis.Password,
			cfg.Adapters.Redis.DB,
			cfg.Adapters.Redis.KeyPrefix,
			time.Duration(cfg.TTL)*time.Second,
		))
	}

	if cfg.DefaultAdapter != "" {
		cm.SetDefaultAdapter(cfg.DefaultAdapter)
	}

	for _, property := range cfg.Properties {
		if property.Disabled {
			continue
		}
		domain := CacheDomain(property.Domain)
		if property.Adapter != "" {
			cm.SetDomainAdapter(domain, property.Adapter)
			continue
		}

		evictionPolicy := property.EvictionPolicy
		if evictionPolicy == "" {
			evictionPolicy = cfg.EvictionPolicy
		}
		cleanupInterval := property.CleanupInterval
		if cleanupInterval <= 0 {
			cleanupInterval = cfg.CleanupInterval
		}
		adapter := NewInMemoryAdapter(
			"memory-"+property.Domain,
			property.Size,
			time.Duration(property.TTL)*time.Second,
			EvictionPolicy(evictionPolicy),
			time.Duration(cleanupInterval)*time.Second,
		)
		cm.RegisterAdapter(adapter)
		cm.SetDomainAdapter(domain, adapter.Name())
	}

	return cm
}

// RegisterAdapter makes an adapter available for domain routing under its
// own name.
func (cm *CacheManager) RegisterAdapter(adapter CacheAdapter) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.adapters[adapter.Name()] = adapter
}

// SetDefaultAdapter routes domains without an explicit mapping to the named
// adapter. An unknown name keeps the current default with a warning.
func (cm *CacheManager) SetDefaultAdapter(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.adapters[name]; !exists {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
			Warn("Adapter not registered, keeping the current default adapter",
				log.String(log.LoggerKeyAdapterName, name))
		return
	}
	cm.defaultAdapter = name
}

// SetDomainAdapter routes a domain to a registered adapter. An unknown
// adapter name falls back to the default adapter with a warning.
func (cm *CacheManager) SetDomainAdapter(domain CacheDomain, adapterName string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.adapters[adapterName]; !exists {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
			Warn("Adapter not registered, domain falls back to the default adapter",
				log.String(log.LoggerKeyCacheDomain, string(domain)),
				log.String(log.LoggerKeyAdapterName, adapterName))
		cm.domainAdapters[domain] = cm.defaultAdapter
		return
	}
	cm.domainAdapters[domain] = adapterName
}

// AdapterForDomain resolves a domain to its adapter, falling back to the
// default adapter.
func (cm *CacheManager) AdapterForDomain(domain CacheDomain) CacheAdapter {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.adapterForLocked(domain)
}

func (cm *CacheManager) adapterForLocked(domain CacheDomain) CacheAdapter {
	if name, exists := cm.domainAdapters[domain]; exists {
		if adapter, ok := cm.adapters[name]; ok {
			return adapter
		}
	}
	return cm.adapters[cm.defaultAdapter]
}

// Get retrieves a value from the domain's adapter, recording latency and
// emitting a HIT or MISS event.
func (cm *CacheManager) Get(ctx context.Context, domain CacheDomain, key string) (any, bool) {
	adapter := cm.AdapterForDomain(domain)

	start := time.Now()
	value, found := adapter.Get(ctx, key)
	cm.recordTiming(domain, time.Since(start))

	if found {
		cm.emit(event.TypeCacheHit, domain, key)
	} else {
		cm.emit(event.TypeCacheMiss, domain, key)
	}
	return value, found
}

// Set stores a value in the domain's adapter, recording latency and emitting
// a SET event.
func (cm *CacheManager) Set(ctx context.Context, domain CacheDomain, key string, value any,
	opts CacheOptions) {
	adapter := cm.AdapterForDomain(domain)

	start := time.Now()
	err := adapter.Set(ctx, key, value, opts)
	cm.recordTiming(domain, time.Since(start))

	if err != nil {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
			Warn("Failed to set value in the cache", log.String("key", key), log.Error(err))
		cm.emit(event.TypeCacheError, domain, key)
		return
	}
	cm.emit(event.TypeCacheSet, domain, key)
}

// Delete removes a value from the domain's adapter, recording latency and
// emitting a DELETE event.
func (cm *CacheManager) Delete(ctx context.Context, domain CacheDomain, key string) {
	adapter := cm.AdapterForDomain(domain)

	start := time.Now()
	err := adapter.Delete(ctx, key)
	cm.recordTiming(domain, time.Since(start))

	if err != nil {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
			Warn("Failed to delete value from the cache", log.String("key", key), log.Error(err))
		cm.emit(event.TypeCacheError, domain, key)
		return
	}
	cm.emit(event.TypeCacheDelete, domain, key)
}

// Has reports whether a live entry exists in the domain's adapter.
func (cm *CacheManager) Has(ctx context.Context, domain CacheDomain, key string) bool {
	adapter := cm.AdapterForDomain(domain)

	start := time.Now()
	found := adapter.Has(ctx, key)
	cm.recordTiming(domain, time.Since(start))
	return found
}

// Keys returns the domain's keys matching the glob pattern.
func (cm *CacheManager) Keys(ctx context.Context, domain CacheDomain, pattern string) []string {
	adapter := cm.AdapterForDomain(domain)

	start := time.Now()
	keys := adapter.Keys(ctx, pattern)
	cm.recordTiming(domain, time.Since(start))
	return keys
}

// Clear clears the given domains, or every resolved adapter when no domain
// is given. Each adapter is cleared at most once.
func (cm *CacheManager) Clear(ctx context.Context, domains ...CacheDomain) {
	if len(domains) == 0 {
		for _, adapter := range cm.resolvedAdapters() {
			_ = adapter.Clear(ctx)
			cm.emit(event.TypeCacheClear, DomainDefault, "")
		}
		return
	}
	for _, domain := range domains {
		_ = cm.AdapterForDomain(domain).Clear(ctx)
		cm.emit(event.TypeCacheClear, domain, "")
	}
}

// GetStatistics aggregates statistics across every resolved adapter: counts
// are summed, the hit rate is recomputed, and the entry age bounds take the
// oldest and newest across adapters.
func (cm *CacheManager) GetStatistics() CacheStats {
	var agg CacheStats
	for _, adapter := range cm.resolvedAdapters() {
		stats := adapter.GetStats()
		agg.Hits += stats.Hits
		agg.Misses += stats.Misses
		agg.Errors += stats.Errors
		agg.Sets += stats.Sets
		agg.Deletes += stats.Deletes
		agg.Size += stats.Size
		agg.ItemCount += stats.ItemCount
		if !stats.OldestEntry.IsZero() &&
			(agg.OldestEntry.IsZero() || stats.OldestEntry.Before(agg.OldestEntry)) {
			agg.OldestEntry = stats.OldestEntry
		}
		if stats.NewestEntry.After(agg.NewestEntry) {
			agg.NewestEntry = stats.NewestEntry
		}
	}
	if total := agg.Hits + agg.Misses; total > 0 {
		agg.HitRate = float64(agg.Hits) / float64(total)
	}
	return agg
}

// GetAverageResponseTime returns the average of the domain's recorded
// latency samples.
func (cm *CacheManager) GetAverageResponseTime(domain CacheDomain) time.Duration {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	ring, exists := cm.timings[domain]
	if !exists {
		return 0
	}
	return ring.average()
}

// GetOverallAverageResponseTime averages the recorded latency samples across
// every domain.
func (cm *CacheManager) GetOverallAverageResponseTime() time.Duration {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var total time.Duration
	var count int
	for _, ring := range cm.timings {
		for i := 0; i < ring.count; i++ {
			total += ring.samples[i]
		}
		count += ring.count
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// GetMaxSize returns the aggregate capacity bound. Sizing semantics are
// currently unbounded; zero means no limit.
func (cm *CacheManager) GetMaxSize() int64 {
	return 0
}

// AttachHealthMonitor associates a health monitor so Dispose can stop it.
func (cm *CacheManager) AttachHealthMonitor(monitor *CacheHealthMonitor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.health = monitor
}

// Dispose stops the attached health monitor and disposes every registered
// adapter. It is safe to call during shutdown more than once.
func (cm *CacheManager) Dispose() {
	cm.mu.Lock()
	if cm.disposed {
		cm.mu.Unlock()
		return
	}
	cm.disposed = true
	health := cm.health
	adapters := make([]CacheAdapter, 0, len(cm.adapters))
	for _, adapter := range cm.adapters {
		adapters = append(adapters, adapter)
	}
	cm.mu.Unlock()

	if health != nil {
		health.Stop()
	}
	for _, adapter := range adapters {
		adapter.Dispose()
	}
}

// resolvedAdapters returns the distinct adapters reachable through the
// default route or any domain route.
func (cm *CacheManager) resolvedAdapters() []CacheAdapter {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	seen := make(map[string]struct{})
	adapters := make([]CacheAdapter, 0, len(cm.adapters)+1)

	appendAdapter := func(adapter CacheAdapter) {
		if _, dup := seen[adapter.Name()]; dup {
			return
		}
		seen[adapter.Name()] = struct{}{}
		adapters = append(adapters, adapter)
	}

	appendAdapter(cm.adapters[cm.defaultAdapter])
	for domain := range cm.domainAdapters {
		appendAdapter(cm.adapterForLocked(domain))
	}
	return adapters
}

// recordTiming appends a latency sample to the domain's ring buffer.
func (cm *CacheManager) recordTiming(domain CacheDomain, elapsed time.Duration) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	ring, exists := cm.timings[domain]
	if !exists {
		ring = &responseTimeRing{}
		cm.timings[domain] = ring
	}
	ring.add(elapsed)
}

// emit publishes a lifecycle event. Delivery is best-effort: publisher
// failures are logged and never fail the cache operation.
func (cm *CacheManager) emit(eventType string, domain CacheDomain, key string) {
	if cm.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger().With(log.String(log.LoggerKeyComponentName, managerLoggerComponentName)).
				Warn("Failed to publish cache lifecycle event",
					log.String("eventType", eventType), log.Any("panic", r))
		}
	}()

	payload := map[string]any{"domain": string(domain)}
	if key != "" {
		payload["key"] = key
	}
	cm.publisher.Publish(event.New(eventType, payload))
}
