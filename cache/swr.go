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
)

// StaleWhileRevalidateStrategy serves the cached value immediately and
// refreshes it in the background, throttled per key. Entries are written
// with the stale window added to their TTL so a value stays servable while
// revalidation keeps it fresh.
type StaleWhileRevalidateStrategy struct {
	adapter     CacheAdapter
	queue       *RevalidationQueue
	minInterval time.Duration
	staleWindow time.Duration

	mu              sync.Mutex
	lastRevalidated map[string]time.Time
}

// NewStaleWhileRevalidateStrategy creates a stale-while-revalidate strategy
// over the given adapter and queue. Zero minInterval or staleWindow select
// the defaults.
func NewStaleWhileRevalidateStrategy(adapter CacheAdapter, queue *RevalidationQueue,
	minInterval, staleWindow time.Duration) *StaleWhileRevalidateStrategy {
	if minInterval <= 0 {
		minInterval = defaultRevalidateInterval
	}
	if staleWindow <= 0 {
		staleWindow = defaultStaleWindow
	}
	return &StaleWhileRevalidateStrategy{
		adapter:         adapter,
		queue:           queue,
		minInterval:     minInterval,
		staleWindow:     staleWindow,
		lastRevalidated: make(map[string]time.Time),
	}
}

// Get returns the cached value for key. With a stale value present the call
// returns it immediately, enqueueing at most one background refresh per
// throttle interval. Without one (or with ForceRefresh) the value is fetched
// synchronously. Fetch errors fall back to the stale value when one exists.
func (s *StaleWhileRevalidateStrategy) Get(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	stale, hasStale := s.adapter.Get(ctx, key)

	if opts.ForceRefresh || !hasStale {
		value, err := s.refresh(ctx, key, fetcher, opts)
		if err != nil {
			if hasStale {
				return stale, nil
			}
			return nil, err
		}
		return value, nil
	}

	if s.eligibleForRevalidation(key) {
		if opts.WaitForRefresh {
			if value, err := s.refresh(ctx, key, fetcher, opts); err == nil {
				return value, nil
			}
			return stale, nil
		}
		s.queue.Enqueue(key, fetcher, s.storeOptions(opts))
	}
	return stale, nil
}

// refresh fetches synchronously, stores the result, and stamps the key's
// revalidation time.
func (s *StaleWhileRevalidateStrategy) refresh(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	value, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.adapter.Set(ctx, key, value, s.storeOptions(opts))

	s.mu.Lock()
	s.lastRevalidated[key] = time.Now()
	s.mu.Unlock()
	return value, nil
}

// eligibleForRevalidation checks the per-key throttle and, when the key is
// eligible, stamps it immediately so concurrent callers within the throttle
// window do not double-enqueue.
func (s *StaleWhileRevalidateStrategy) eligibleForRevalidation(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if last, seen := s.lastRevalidated[key]; seen && now.Sub(last) < s.minInterval {
		return false
	}
	s.lastRevalidated[key] = now
	return true
}

// storeOptions extends the write TTL by the stale window so the entry
// outlives its freshness and remains servable between revalidations.
func (s *StaleWhileRevalidateStrategy) storeOptions(opts CacheOptions) CacheOptions {
	stored := opts
	if stored.TTL == TTLNever {
		return stored
	}
	if stored.TTL <= 0 {
		stored.TTL = defaultCacheTTL
	}
	stored.TTL += s.staleWindow
	return stored
}
