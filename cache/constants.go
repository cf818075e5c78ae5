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

import "time"

// CacheDomain identifies a named partition of the cache keyspace. Domains are
// routing keys only; they carry no behavior of their own.
type CacheDomain string

const (
	// DomainAuth is the partition for authentication data.
	DomainAuth CacheDomain = "auth"
	// DomainUser is the partition for user data.
	DomainUser CacheDomain = "user"
	// DomainPermission is the partition for permission data.
	DomainPermission CacheDomain = "permission"
	// DomainOrganization is the partition for organization data.
	DomainOrganization CacheDomain = "organization"
	// DomainAPI is the partition for upstream API responses.
	DomainAPI CacheDomain = "api"
	// DomainSystem is the partition for system data.
	DomainSystem CacheDomain = "system"
	// DomainDefault is the fallback partition.
	DomainDefault CacheDomain = "default"
)

// EvictionPolicy defines the eviction policy for cache entries.
type EvictionPolicy string

const (
	// EvictionPolicyLRU evicts the entry with the oldest last access time.
	EvictionPolicyLRU EvictionPolicy = "LRU"
	// EvictionPolicyLFU evicts the entry with the lowest hit count.
	EvictionPolicyLFU EvictionPolicy = "LFU"
	// EvictionPolicyFIFO evicts the entry with the oldest creation time.
	EvictionPolicyFIFO EvictionPolicy = "FIFO"
	// EvictionPolicyRandom evicts a uniformly chosen entry.
	EvictionPolicyRandom EvictionPolicy = "Random"
)

// TTLNever marks an entry that must never expire by TTL. Such entries are
// only removed by capacity eviction or an explicit delete.
const TTLNever = time.Duration(-1)

const (
	// defaultCacheTTL is the TTL applied when an operation specifies none.
	defaultCacheTTL = time.Hour
	// defaultCacheSize is the default maximum number of entries per adapter.
	defaultCacheSize = 1000
	// defaultCleanupInterval is the default interval of the expiry sweep.
	defaultCleanupInterval = 60 * time.Second
	// defaultPriority is the entry priority applied when none is given.
	defaultPriority = 1

	// defaultFlushInterval is the default mirror-to-store sync interval of
	// the persistent adapter.
	defaultFlushInterval = 30 * time.Second

	// defaultErrorCacheTTL is the TTL of cached fetcher error markers.
	defaultErrorCacheTTL = 60 * time.Second
	// defaultRevalidateInterval is the per-key background refresh throttle.
	defaultRevalidateInterval = 60 * time.Second
	// defaultRevalidationTick is the polling interval of the revalidation queue.
	defaultRevalidationTick = 100 * time.Millisecond
	// defaultMaxConcurrentRevalidations bounds in-flight background fetchers.
	defaultMaxConcurrentRevalidations = 5
	// defaultStaleWindow is how long past freshness a stale-while-revalidate
	// entry stays servable.
	defaultStaleWindow = 24 * time.Hour

	// defaultHealthCheckInterval is the interval between health checks.
	defaultHealthCheckInterval = 60 * time.Second
	// responseTimeSampleSize caps the per-domain latency ring buffer.
	responseTimeSampleSize = 100
)
