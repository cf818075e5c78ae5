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

import "context"

// FetchFunc produces the value to cache on a miss or forced refresh.
type FetchFunc func(ctx context.Context) (any, error)

// CacheStrategy is the read-through contract shared by the cache-aside and
// stale-while-revalidate strategies.
type CacheStrategy interface {
	// Get returns the cached value for key, invoking fetcher according to
	// the strategy's miss and refresh semantics.
	Get(ctx context.Context, key string, fetcher FetchFunc, opts CacheOptions) (any, error)
}
