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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type CacheModelTestSuite struct {
	suite.Suite
}

func TestCacheModelSuite(t *testing.T) {
	suite.Run(t, new(CacheModelTestSuite))
}

func (suite *CacheModelTestSuite) TestIsExpired() {
	testCases := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{name: "FutureExpiry", expiresAt: time.Now().Add(time.Hour), expected: false},
		{name: "PastExpiry", expiresAt: time.Now().Add(-time.Hour), expected: true},
		{name: "NoExpiry", expiresAt: time.Time{}, expected: false},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			entry := &CacheEntry{Key: "k", ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.expected, entry.IsExpired())
		})
	}
}

func (suite *CacheModelTestSuite) TestResolveTTL() {
	t := suite.T()
	now := time.Now()

	assert.True(t, resolveTTL(TTLNever, time.Hour, now).IsZero())
	assert.Equal(t, now.Add(time.Minute), resolveTTL(time.Minute, time.Hour, now))
	assert.Equal(t, now.Add(time.Hour), resolveTTL(0, time.Hour, now))
}

func (suite *CacheModelTestSuite) TestResolvePriority() {
	t := suite.T()
	assert.Equal(t, defaultPriority, resolvePriority(0))
	assert.Equal(t, defaultPriority, resolvePriority(-1))
	assert.Equal(t, 5, resolvePriority(5))
}
