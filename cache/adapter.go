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

// Package cache provides a domain-partitioned caching engine with pluggable
// storage adapters, TTL and capacity eviction, cache-aside and
// stale-while-revalidate read strategies, event-driven invalidation, and
// health monitoring.
package cache

import "context"

// CacheAdapter is the storage contract of a single cache partition.
//
// Adapter failures degrade, they never propagate: implementations catch
// storage errors internally, count them in their statistics, and surface
// them to the caller as a miss (Get/Has), an empty result (Keys), or a
// silent no-op (Set/Delete/Clear). The error returns exist for adapters
// whose callers opt into strict handling; the built-in adapters always
// return nil after degrading.
type CacheAdapter interface {
	// Name returns the adapter name used for registration and logging.
	Name() string

	// Get retrieves a value by key. The boolean indicates a cache hit.
	// An expired entry is never returned as a hit.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores a value under key, evicting one entry first when the
	// adapter is at capacity.
	Set(ctx context.Context, key string, value any, opts CacheOptions) error

	// Delete removes the entry under key, if any.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Has reports whether a live (non-expired) entry exists under key.
	Has(ctx context.Context, key string) bool

	// Keys returns the keys of live entries matching the glob pattern.
	// An empty pattern matches every key.
	Keys(ctx context.Context, pattern string) []string

	// GetStats returns the adapter statistics.
	GetStats() CacheStats

	// Dispose stops background work owned by the adapter. It is safe to
	// call more than once.
	Dispose()
}
