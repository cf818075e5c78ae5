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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/cachecore/config"
)

type CacheFacadeTestSuite struct {
	suite.Suite
}

func TestCacheFacadeSuite(t *testing.T) {
	suite.Run(t, new(CacheFacadeTestSuite))
}

func newTestFacade() (*CacheFacade, *InMemoryAdapter) {
	adapter := newTestAdapter(100, EvictionPolicyLRU)
	cm := NewCacheManager(adapter, nil)
	facade := NewCacheFacade(cm, FacadeOptions{
		RevalidationTick:      time.Hour,
		MinRevalidateInterval: time.Minute,
		StaleWindow:           time.Hour,
	})
	return facade, adapter
}

func (suite *CacheFacadeTestSuite) TestDomainNamespacing() {
	t := suite.T()
	facade, adapter := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()
	ctx := context.Background()

	userCache := facade.ForDomain(DomainUser)
	orgCache := facade.ForDomain(DomainOrganization)

	userCache.Set(ctx, "k1", "user-value", CacheOptions{})
	orgCache.Set(ctx, "k1", "org-value", CacheOptions{})

	value, found := userCache.Get(ctx, "k1")
	assert.True(t, found)
	assert.Equal(t, "user-value", value)

	value, found = orgCache.Get(ctx, "k1")
	assert.True(t, found)
	assert.Equal(t, "org-value", value)

	// Both live in the shared adapter under their domain prefixes.
	assert.True(t, adapter.Has(ctx, "user:k1"))
	assert.True(t, adapter.Has(ctx, "organization:k1"))
}

func (suite *CacheFacadeTestSuite) TestNewCacheFacadeFromConfig() {
	t := suite.T()
	adapter := newTestAdapter(100, EvictionPolicyLRU)
	cm := NewCacheManager(adapter, nil)
	defer cm.Dispose()

	cfg := &config.CacheConfig{}
	cfg.Revalidation.TickInterval = 50
	cfg.Revalidation.MaxConcurrent = 3
	cfg.Revalidation.MinInterval = 120

	facade := NewCacheFacadeFromConfig(cm, cfg)
	defer facade.Dispose()

	assert.Equal(t, 50*time.Millisecond, facade.options.RevalidationTick)
	assert.Equal(t, 3, facade.options.MaxConcurrent)
	assert.Equal(t, 2*time.Minute, facade.options.MinRevalidateInterval)
}

func (suite *CacheFacadeTestSuite) TestForDomainReturnsSameView() {
	t := suite.T()
	facade, _ := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()

	assert.Same(t, facade.ForDomain(DomainUser), facade.ForDomain(DomainUser))
}

func (suite *CacheFacadeTestSuite) TestGetOrFetch() {
	t := suite.T()
	facade, adapter := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()
	ctx := context.Background()

	userCache := facade.ForDomain(DomainUser)
	calls := 0
	fetcher := func(context.Context) (any, error) {
		calls++
		return "fetched", nil
	}

	value, err := userCache.GetOrFetch(ctx, "k1", fetcher, CacheOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "fetched", value)
	assert.True(t, adapter.Has(ctx, "user:k1"))

	value, err = userCache.GetOrFetch(ctx, "k1", fetcher, CacheOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "fetched", value)
	assert.Equal(t, 1, calls)
}

func (suite *CacheFacadeTestSuite) TestGetStaleServesCachedValue() {
	t := suite.T()
	facade, _ := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()
	ctx := context.Background()

	userCache := facade.ForDomain(DomainUser)
	userCache.Set(ctx, "k1", "stale", CacheOptions{})

	value, err := userCache.GetStale(ctx, "k1", func(context.Context) (any, error) {
		return "fresh", nil
	}, CacheOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "stale", value)
}

func (suite *CacheFacadeTestSuite) TestDeleteAndInvalidatePrefix() {
	t := suite.T()
	facade, _ := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()
	ctx := context.Background()

	userCache := facade.ForDomain(DomainUser)
	userCache.Set(ctx, "profile:1", "p1", CacheOptions{})
	userCache.Set(ctx, "profile:2", "p2", CacheOptions{})
	userCache.Set(ctx, "roles:1", "r1", CacheOptions{})

	userCache.Delete(ctx, "roles:1")
	_, found := userCache.Get(ctx, "roles:1")
	assert.False(t, found)

	userCache.InvalidatePrefix(ctx, "profile:")
	_, found = userCache.Get(ctx, "profile:1")
	assert.False(t, found)
	_, found = userCache.Get(ctx, "profile:2")
	assert.False(t, found)
}

func (suite *CacheFacadeTestSuite) TestInvalidatePrefixLeavesOtherDomainsIntact() {
	t := suite.T()
	facade, _ := newTestFacade()
	defer facade.Dispose()
	defer facade.Manager().Dispose()
	ctx := context.Background()

	userCache := facade.ForDomain(DomainUser)
	orgCache := facade.ForDomain(DomainOrganization)
	userCache.Set(ctx, "profile:1", "u", CacheOptions{})
	orgCache.Set(ctx, "profile:1", "o", CacheOptions{})

	userCache.InvalidatePrefix(ctx, "profile:")

	_, found := userCache.Get(ctx, "profile:1")
	assert.False(t, found)
	value, found := orgCache.Get(ctx, "profile:1")
	assert.True(t, found)
	assert.Equal(t, "o", value)
}
