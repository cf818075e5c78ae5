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
	"errors"
	"sync"
	"time"

	"github.com/asgardeo/cachecore/log"
)

const fetchLoggerComponentName = "FetchStrategy"

// fetchErrorMarker tags cached fetcher failures so they stay recognizable
// after a JSON round-trip through a persistent adapter.
const fetchErrorMarker = "fetch-error"

// cachedFetchError is the sentinel stored when a fetcher failure is cached.
type cachedFetchError struct {
	Marker  string `json:"__cachecore_marker"`
	Message string `json:"message"`
}

// asCachedFetchError detects a cached error sentinel structurally, whether it
// is still the typed value or a decoded JSON object.
func asCachedFetchError(value any) (string, bool) {
	switch v := value.(type) {
	case *cachedFetchError:
		if v.Marker == fetchErrorMarker {
			return v.Message, true
		}
	case map[string]any:
		if v["__cachecore_marker"] == fetchErrorMarker {
			message, _ := v["message"].(string)
			return message, true
		}
	}
	return "", false
}

// fetchCall deduplicates concurrent fetches for the same key.
type fetchCall struct {
	wg  sync.WaitGroup
	val any
	err error
}

// FetchStrategyOptions configures a FetchStrategy.
type FetchStrategyOptions struct {
	// ShouldCache decides whether a fetched value is cached. The default
	// rejects nil and accepts everything else.
	ShouldCache func(value any) bool

	// CacheErrors stores a sentinel error marker with ErrorTTL when the
	// fetcher fails, so repeated misses do not hammer the source.
	CacheErrors bool

	// ErrorTTL is the TTL of cached error markers (default 60s).
	ErrorTTL time.Duration

	// SuppressErrors returns a nil value instead of propagating fetcher
	// failures.
	SuppressErrors bool
}

// FetchStrategy implements the cache-aside read path: serve hits, fetch and
// populate on misses. Concurrent fetches of the same key are deduplicated.
type FetchStrategy struct {
	adapter        CacheAdapter
	shouldCache    func(value any) bool
	cacheErrors    bool
	errorTTL       time.Duration
	suppressErrors bool

	mu    sync.Mutex
	loads map[string]*fetchCall
}

// NewFetchStrategy creates a cache-aside strategy over the given adapter.
func NewFetchStrategy(adapter CacheAdapter, opts FetchStrategyOptions) *FetchStrategy {
	shouldCache := opts.ShouldCache
	if shouldCache == nil {
		shouldCache = func(value any) bool { return value != nil }
	}
	errorTTL := opts.ErrorTTL
	if errorTTL <= 0 {
		errorTTL = defaultErrorCacheTTL
	}
	return &FetchStrategy{
		adapter:        adapter,
		shouldCache:    shouldCache,
		cacheErrors:    opts.CacheErrors,
		errorTTL:       errorTTL,
		suppressErrors: opts.SuppressErrors,
		loads:          make(map[string]*fetchCall),
	}
}

// Get returns the cached value for key. On a miss (or forced refresh) it
// invokes the fetcher once, deduplicating concurrent callers, caches the
// result when it passes the shouldCache predicate, and returns it.
func (s *FetchStrategy) Get(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	if !opts.ForceRefresh {
		if value, found := s.adapter.Get(ctx, key); found {
			if message, isMarker := asCachedFetchError(value); isMarker {
				if s.suppressErrors {
					return nil, nil
				}
				return nil, errors.New(message)
			}
			return value, nil
		}
	}

	s.mu.Lock()
	if c, inFlight := s.loads[key]; inFlight {
		s.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err
	}
	c := &fetchCall{}
	c.wg.Add(1)
	s.loads[key] = c
	s.mu.Unlock()

	c.val, c.err = s.fetchAndCache(ctx, key, fetcher, opts)
	c.wg.Done()

	s.mu.Lock()
	delete(s.loads, key)
	s.mu.Unlock()

	return c.val, c.err
}

// fetchAndCache runs the fetcher and applies the caching and error policy.
func (s *FetchStrategy) fetchAndCache(ctx context.Context, key string, fetcher FetchFunc,
	opts CacheOptions) (any, error) {
	value, err := fetcher(ctx)
	if err != nil {
		if s.cacheErrors {
			markerOpts := opts
			markerOpts.TTL = s.errorTTL
			_ = s.adapter.Set(ctx, key,
				&cachedFetchError{Marker: fetchErrorMarker, Message: err.Error()}, markerOpts)
		}
		if s.suppressErrors {
			log.GetLogger().With(log.String(log.LoggerKeyComponentName, fetchLoggerComponentName)).
				Warn("Fetcher failed, returning empty result", log.String("key", key), log.Error(err))
			return nil, nil
		}
		return nil, err
	}

	if s.shouldCache(value) {
		_ = s.adapter.Set(ctx, key, value, opts)
	}
	return value, nil
}
