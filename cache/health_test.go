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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/cachecore/config"
)

// recordingListener captures health status change notifications.
type recordingListener struct {
	mu       sync.Mutex
	statuses []HealthStatus
}

func (l *recordingListener) OnHealthStatusChanged(current, _ HealthStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, current)
}

func (l *recordingListener) notifications() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.statuses)
}

// panickyListener fails every notification.
type panickyListener struct{}

func (panickyListener) OnHealthStatusChanged(_, _ HealthStatus) {
	panic("listener down")
}

type CacheHealthMonitorTestSuite struct {
	suite.Suite
}

func TestCacheHealthMonitorSuite(t *testing.T) {
	suite.Run(t, new(CacheHealthMonitorTestSuite))
}

func newHealthTestManager() *CacheManager {
	return NewCacheManager(newTestAdapter(1000, EvictionPolicyLRU), nil)
}

func driveHitRate(cm *CacheManager, hits, misses int) {
	ctx := context.Background()
	cm.Set(ctx, DomainUser, "present", "v", CacheOptions{})
	for i := 0; i < hits; i++ {
		cm.Get(ctx, DomainUser, "present")
	}
	for i := 0; i < misses; i++ {
		cm.Get(ctx, DomainUser, "absent")
	}
}

func (suite *CacheHealthMonitorTestSuite) TestHealthyStatus() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()
	driveHitRate(cm, 90, 10)

	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.RunCheck()

	status := monitor.Status()
	assert.Equal(t, HealthStateHealthy, status.State)
	assert.Empty(t, status.Issues)
	assert.InDelta(t, 0.9, status.HitRate, 0.001)
	assert.False(t, status.CheckedAt.IsZero())
}

func (suite *CacheHealthMonitorTestSuite) TestLowHitRateSeverity() {
	testCases := []struct {
		name     string
		hits     int
		misses   int
		state    HealthState
		severity IssueSeverity
	}{
		// 0.5 is below the 0.7 threshold but above half of it.
		{name: "MediumViolation", hits: 50, misses: 50, state: HealthStateDegraded, severity: SeverityMedium},
		// 0.1 is below half the threshold.
		{name: "HighViolation", hits: 10, misses: 90, state: HealthStateUnhealthy, severity: SeverityHigh},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			cm := newHealthTestManager()
			defer cm.Dispose()
			driveHitRate(cm, tc.hits, tc.misses)

			monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
			monitor.RunCheck()

			status := monitor.Status()
			assert.Equal(t, tc.state, status.State)
			if assert.Len(t, status.Issues, 1) {
				assert.Equal(t, "low-hit-rate", status.Issues[0].Code)
				assert.Equal(t, tc.severity, status.Issues[0].Severity)
			}
		})
	}
}

func (suite *CacheHealthMonitorTestSuite) TestEmptyCacheIsNotLowHitRate() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.RunCheck()

	// With no reads yet there is no hit rate to judge.
	assert.Equal(t, HealthStateHealthy, monitor.Status().State)
}

func (suite *CacheHealthMonitorTestSuite) TestMonitoringFailureBecomesCriticalIssue() {
	t := suite.T()
	monitor := NewCacheHealthMonitor(nil, DefaultHealthThresholds(), time.Hour)
	monitor.RunCheck()

	status := monitor.Status()
	assert.Equal(t, HealthStateUnhealthy, status.State)
	if assert.Len(t, status.Issues, 1) {
		assert.Equal(t, "monitoring-error", status.Issues[0].Code)
		assert.Equal(t, SeverityCritical, status.Issues[0].Severity)
	}
}

func (suite *CacheHealthMonitorTestSuite) TestFirstCheckAlwaysNotifies() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	listener := &recordingListener{}
	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.AddListener(listener)
	monitor.RunCheck()

	assert.Equal(t, 1, listener.notifications())
}

func (suite *CacheHealthMonitorTestSuite) TestUnchangedStatusSuppressesNotification() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()
	driveHitRate(cm, 90, 10)

	listener := &recordingListener{}
	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.AddListener(listener)

	monitor.RunCheck()
	monitor.RunCheck()
	assert.Equal(t, 1, listener.notifications())
}

func (suite *CacheHealthMonitorTestSuite) TestStateChangeNotifies() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()
	driveHitRate(cm, 90, 10)

	listener := &recordingListener{}
	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.AddListener(listener)
	monitor.RunCheck()

	// Collapse the hit rate so the state degrades.
	driveHitRate(cm, 0, 400)
	monitor.RunCheck()

	assert.Equal(t, 2, listener.notifications())
	listener.mu.Lock()
	last := listener.statuses[len(listener.statuses)-1]
	listener.mu.Unlock()
	assert.NotEqual(t, HealthStateHealthy, last.State)
}

func (suite *CacheHealthMonitorTestSuite) TestListenerPanicIsIsolated() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	listener := &recordingListener{}
	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.AddListener(panickyListener{})
	monitor.AddListener(listener)
	monitor.RunCheck()

	// The panicking listener does not prevent delivery to the next one.
	assert.Equal(t, 1, listener.notifications())
}

func (suite *CacheHealthMonitorTestSuite) TestSeverityGrading() {
	t := suite.T()
	assert.Equal(t, SeverityMedium, severityBelow(0.5, 0.7))
	assert.Equal(t, SeverityHigh, severityBelow(0.1, 0.7))
	assert.Equal(t, SeverityMedium, severityAbove(0.08, 0.05))
	assert.Equal(t, SeverityHigh, severityAbove(0.2, 0.05))
}

func (suite *CacheHealthMonitorTestSuite) TestNewCacheHealthMonitorFromConfig() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	monitor := NewCacheHealthMonitorFromConfig(cm, config.HealthConfig{
		CheckInterval:     30,
		MinHitRate:        0.9,
		MaxErrorRate:      0.01,
		MinAvailableSpace: 0.2,
		MaxResponseTime:   50,
	})
	assert.Equal(t, 30*time.Second, monitor.interval)
	assert.InDelta(t, 0.9, monitor.thresholds.MinHitRate, 0.001)
	assert.InDelta(t, 0.01, monitor.thresholds.MaxErrorRate, 0.001)
	assert.InDelta(t, 0.2, monitor.thresholds.MinAvailableSpace, 0.001)
	assert.Equal(t, 50*time.Millisecond, monitor.thresholds.MaxResponseTime)

	// The configured threshold bites: a 0.8 hit rate is healthy under the
	// default 0.7 but not under min_hit_rate 0.9.
	driveHitRate(cm, 80, 20)
	monitor.RunCheck()
	assert.Equal(t, HealthStateDegraded, monitor.Status().State)
}

func (suite *CacheHealthMonitorTestSuite) TestMonitorConfigZeroValuesSelectDefaults() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	monitor := NewCacheHealthMonitorFromConfig(cm, config.HealthConfig{})
	assert.Equal(t, defaultHealthCheckInterval, monitor.interval)
	assert.Equal(t, DefaultHealthThresholds(), monitor.thresholds)
}

func (suite *CacheHealthMonitorTestSuite) TestStartAndStop() {
	t := suite.T()
	cm := newHealthTestManager()
	defer cm.Dispose()

	monitor := NewCacheHealthMonitor(cm, DefaultHealthThresholds(), time.Hour)
	monitor.Start()
	// Start runs one immediate check.
	assert.False(t, monitor.Status().CheckedAt.IsZero())
	monitor.Stop()
	monitor.Stop()
}
