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
)

// FacadeOptions configures the strategies composed by the facade.
type FacadeOptions struct {
	Fetch                 FetchStrategyOptions
	RevalidationTick      time.Duration
	MaxConcurrent         int
	MinRevalidateInterval time.Duration
	StaleWindow           time.Duration
}

// CacheFacade is a thin convenience layer composing the manager with a
// cache-aside and a stale-while-revalidate strategy per domain. Keys are
// namespaced with the domain name.
type CacheFacade struct {
	manager *CacheManager
	options FacadeOptions

	mu      sync.Mutex
	queues  map[string]*RevalidationQueue
	domains map[CacheDomain]*DomainCache
}

// NewCacheFacade creates a facade over the given manager.
func NewCacheFacade(manager *CacheManager, options FacadeOptions) *CacheFacade {
	return &CacheFacade{
		manager: manager,
		options: options,
		queues:  make(map[string]*RevalidationQueue),
		domains: make(map[CacheDomain]*DomainCache),
	}
}

// NewCacheFacadeFromConfig creates a facade whose revalidation settings come
// from configuration. TickInterval is in milliseconds and MinInterval in
// seconds; zero values select the defaults.
func NewCacheFacadeFromConfig(manager *CacheManager, cfg *config.CacheConfig) *CacheFacade {
	return NewCacheFacade(manager, FacadeOptions{
		RevalidationTick:      time.Duration(cfg.Revalidation.TickInterval) * time.Millisecond,
		MaxConcurrent:         cfg.Revalidation.MaxConcurrent,
		MinRevalidateInterval: time.Duration(cfg.Revalidation.MinInterval) * time.Second,
	})
}

// ForDomain returns the domain-scoped cache view, creating its strategies on
// first use. Domains sharing an adapter share one revalidation queue.
func (f *CacheFacade) ForDomain(domain CacheDomain) *DomainCache {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dc, exists := f.domains[domain]; exists {
		return dc
	}

	adapter := f.manager.AdapterForDomain(domain)
	queue, exists := f.queues[adapter.Name()]
	if !exists {
		queue = NewRevalidationQueue(adapter, f.options.RevalidationTick, f.options.MaxConcurrent)
		f.queues[adapter.Name()] = queue
	}

	dc := &DomainCache{
		facade: f,
		domain: domain,
		prefix: string(domain) + ":",
		fetch:  NewFetchStrategy(adapter, f.options.Fetch),
		swr: NewStaleWhileRevalidateStrategy(adapter, queue,
			f.options.MinRevalidateInterval, f.options.StaleWindow),
	}
	f.domains[domain] = dc
	return dc
}

// Manager exposes the underlying cache manager.
func (f *CacheFacade) Manager() *CacheManager {
	return f.manager
}

// Dispose stops every revalidation queue owned by the facade.
func (f *CacheFacade) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, queue := range f.queues {
		queue.Stop()
	}
}

// DomainCache is the domain-scoped view exposed by the facade. All keys are
// transparently namespaced with the domain prefix.
type DomainCache struct {
	facade *CacheFacade
	domain CacheDomain
	prefix string
	fetch  *FetchStrategy
	swr    *StaleWhileRevalidateStrategy
}

// Get retrieves a namespaced value through the manager.
func (dc *DomainCache) Get(ctx context.Context, key string) (any, bool) {
	return dc.facade.manager.Get(ctx, dc.domain, dc.prefix+key)
}

// Set stores a namespaced value through the manager.
func (dc *DomainCache) Set(ctx context.Context, key string, value any, opts CacheOptions) {
	dc.facade.manager.Set(ctx, dc.domain, dc.prefix+key, value, opts)
}

// Delete removes a namespaced value through the manager.
func (dc *DomainCache) Delete(ctx context.Context, key string) {
	dc.facade.manager.Delete(ctx, dc.domain, dc.prefix+key)
}

// GetOrFetch reads through the cache-aside strategy.
func (dc *DomainCache) GetOrFetch(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	return dc.fetch.Get(ctx, dc.prefix+key, fetcher, opts)
}

// GetStale reads through the stale-while-revalidate strategy.
func (dc *DomainCache) GetStale(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	return dc.swr.Get(ctx, dc.prefix+key, fetcher, opts)
}

// InvalidatePrefix deletes every key in the domain under the given key
// prefix.
func (dc *DomainCache) InvalidatePrefix(ctx context.Context, keyPrefix string) {
	keys := dc.facade.manager.Keys(ctx, dc.domain, dc.prefix+keyPrefix+"*")
	for _, key := range keys {
		dc.facade.manager.Delete(ctx, dc.domain, key)
	}
}
