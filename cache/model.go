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
	"time"
)

// EntryMetadata is the opaque tag and priority bag attached to an entry.
type EntryMetadata struct {
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority"`
}

// CacheEntry represents a single cached value together with its bookkeeping
// metadata. HitCount and LastAccessedAt are mutated on every successful read.
type CacheEntry struct {
	Key            string        `json:"key"`
	Value          any           `json:"value"`
	ExpiresAt      time.Time     `json:"expiresAt,omitempty"` // zero => never expires
	CreatedAt      time.Time     `json:"createdAt"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
	HitCount       int64         `json:"hitCount"`
	Metadata       EntryMetadata `json:"metadata"`
}

// IsExpired reports whether the entry has passed its expiry time. An entry
// without an expiry time never expires.
func (e *CacheEntry) IsExpired() bool {
	return e.isExpiredAt(time.Now())
}

func (e *CacheEntry) isExpiredAt(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// CacheStats represents cache statistics for a single adapter or, when
// aggregated by the manager, for every domain combined.
type CacheStats struct {
	Hits        int64
	Misses      int64
	HitRate     float64
	Errors      int64
	Sets        int64
	Deletes     int64
	Size        int64
	ItemCount   int
	OldestEntry time.Time
	NewestEntry time.Time
}

// CacheOptions holds the per-call options of a cache operation.
type CacheOptions struct {
	// TTL overrides the adapter default. Zero selects the default;
	// TTLNever disables TTL expiry for the entry.
	TTL time.Duration

	Tags     []string
	Priority int
	Compress bool

	StaleWhileRevalidate bool
	StaleIfError         bool
	ForceRefresh         bool
	WaitForRefresh       bool
}

// CachePolicy declares the caching behavior attached to a domain. Attaching
// a policy is advisory metadata; adapters enforce TTL and capacity from their
// own configuration.
type CachePolicy struct {
	TTL                  time.Duration
	MaxEntries           int
	MaxSize              int64
	EvictionPolicy       EvictionPolicy
	CompressThreshold    int
	RefreshInterval      time.Duration
	StaleWhileRevalidate time.Duration
	StaleIfError         time.Duration
}

// resolveTTL maps the option TTL onto a concrete expiry time.
func resolveTTL(ttl, fallback time.Duration, now time.Time) time.Time {
	switch {
	case ttl == TTLNever:
		return time.Time{}
	case ttl > 0:
		return now.Add(ttl)
	default:
		return now.Add(fallback)
	}
}

// resolvePriority applies the default priority when none is given.
func resolvePriority(priority int) int {
	if priority <= 0 {
		return defaultPriority
	}
	return priority
}
