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

// noopAdapter discards every write and misses every read. It backs disabled
// caching so callers keep a working manager without conditional code paths.
type noopAdapter struct {
	name string
}

// NewNoopAdapter creates an adapter that caches nothing.
func NewNoopAdapter(name string) CacheAdapter {
	return &noopAdapter{name: name}
}

func (a *noopAdapter) Name() string {
	return a.name
}

func (a *noopAdapter) Get(context.Context, string) (any, bool) {
	return nil, false
}

func (a *noopAdapter) Set(context.Context, string, any, CacheOptions) error {
	return nil
}

func (a *noopAdapter) Delete(context.Context, string) error {
	return nil
}

func (a *noopAdapter) Clear(context.Context) error {
	return nil
}

func (a *noopAdapter) Has(context.Context, string) bool {
	return false
}

func (a *noopAdapter) Keys(context.Context, string) []string {
	return nil
}

func (a *noopAdapter) GetStats() CacheStats {
	return CacheStats{}
}

func (a *noopAdapter) Dispose() {}
