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

	"github.com/asgardeo/cachecore/event"
)

type CacheInvalidationHandlerTestSuite struct {
	suite.Suite
}

func TestCacheInvalidationHandlerSuite(t *testing.T) {
	suite.Run(t, new(CacheInvalidationHandlerTestSuite))
}

func newInvalidationTestManager() *CacheManager {
	return NewCacheManager(newTestAdapter(100, EvictionPolicyLRU), nil)
}

func (suite *CacheInvalidationHandlerTestSuite) TestMatchingKeysAreDeleted() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1:profile", "p1", CacheOptions{})
	cm.Set(ctx, DomainUser, "user:1:roles", "r1", CacheOptions{})
	cm.Set(ctx, DomainUser, "user:2:profile", "p2", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:1:*",
		DependsOn:  []string{"user.updated"},
	})

	assert.NoError(t, handler.Handle(event.New("user.updated", nil)))

	assert.False(t, cm.Has(ctx, DomainUser, "user:1:profile"))
	assert.False(t, cm.Has(ctx, DomainUser, "user:1:roles"))
	assert.True(t, cm.Has(ctx, DomainUser, "user:2:profile"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestTTLRewriteInsteadOfDelete() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainAuth, "session:1", "s1", CacheOptions{TTL: time.Hour})

	handler.Register(InvalidationPattern{
		Domain:     DomainAuth,
		KeyPattern: "session:*",
		DependsOn:  []string{"policy.changed"},
		TTL:        20 * time.Millisecond,
	})

	assert.NoError(t, handler.Handle(event.New("policy.changed", nil)))

	// The entry survives the event with a shortened TTL.
	value, found := cm.Get(ctx, DomainAuth, "session:1")
	assert.True(t, found)
	assert.Equal(t, "s1", value)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, cm.Has(ctx, DomainAuth, "session:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestConditionFiltersEvents() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
		Condition: func(payload map[string]any) bool {
			return payload["tenant"] == "acme"
		},
	})

	assert.NoError(t, handler.Handle(event.New("user.updated", map[string]any{"tenant": "other"})))
	assert.True(t, cm.Has(ctx, DomainUser, "user:1"))

	assert.NoError(t, handler.Handle(event.New("user.updated", map[string]any{"tenant": "acme"})))
	assert.False(t, cm.Has(ctx, DomainUser, "user:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestWildcardTriggers() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})
	cm.Set(ctx, DomainOrganization, "org:1", "v", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.*"},
	})
	handler.Register(InvalidationPattern{
		Domain:     DomainOrganization,
		KeyPattern: "org:*",
		DependsOn:  []string{"*"},
	})

	assert.True(t, handler.CanHandle("user.deleted"))
	assert.NoError(t, handler.Handle(event.New("user.deleted", nil)))

	// The namespace wildcard and the global wildcard both fire.
	assert.False(t, cm.Has(ctx, DomainUser, "user:1"))
	assert.False(t, cm.Has(ctx, DomainOrganization, "org:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestAllMatchingPatternsApply() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})
	cm.Set(ctx, DomainUser, "roles:1", "v", CacheOptions{})

	// Priority orders evaluation but never short-circuits.
	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
		Priority:   10,
	})
	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "roles:*",
		DependsOn:  []string{"user.updated"},
		Priority:   1,
	})

	assert.NoError(t, handler.Handle(event.New("user.updated", nil)))
	assert.False(t, cm.Has(ctx, DomainUser, "user:1"))
	assert.False(t, cm.Has(ctx, DomainUser, "roles:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestFailingConditionIsIsolated() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
		Priority:   10,
		Condition: func(map[string]any) bool {
			panic("broken condition")
		},
	})
	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
		Priority:   1,
	})

	// The panicking pattern is skipped; the remaining one still applies.
	assert.NotPanics(t, func() {
		_ = handler.Handle(event.New("user.updated", nil))
	})
	assert.False(t, cm.Has(ctx, DomainUser, "user:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestSubscribeToBus() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	bus := event.NewBus()
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
	})
	handler.SubscribeTo(bus)

	bus.Publish(event.New("user.updated", nil))
	assert.False(t, cm.Has(ctx, DomainUser, "user:1"))
}

func (suite *CacheInvalidationHandlerTestSuite) TestOverlappingTriggersApplyOnce() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainAuth, "session:1", "s1", CacheOptions{TTL: time.Hour})

	// Both triggers match the event; the rewrite must still run once.
	handler.Register(InvalidationPattern{
		Domain:     DomainAuth,
		KeyPattern: "session:*",
		DependsOn:  []string{"policy.changed", "policy.*"},
		TTL:        time.Minute,
	})

	before := cm.GetStatistics().Hits
	assert.NoError(t, handler.Handle(event.New("policy.changed", nil)))
	assert.Equal(t, before+1, cm.GetStatistics().Hits)
}

func (suite *CacheInvalidationHandlerTestSuite) TestUnrelatedEventIsIgnored() {
	t := suite.T()
	cm := newInvalidationTestManager()
	defer cm.Dispose()
	handler := NewCacheInvalidationHandler(cm)
	ctx := context.Background()

	cm.Set(ctx, DomainUser, "user:1", "v", CacheOptions{})

	handler.Register(InvalidationPattern{
		Domain:     DomainUser,
		KeyPattern: "user:*",
		DependsOn:  []string{"user.updated"},
	})

	assert.False(t, handler.CanHandle("org.updated"))
	assert.NoError(t, handler.Handle(event.New("org.updated", nil)))
	assert.True(t, cm.Has(ctx, DomainUser, "user:1"))
}
