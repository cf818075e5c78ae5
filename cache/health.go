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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/asgardeo/cachecore/config"
	"github.com/asgardeo/cachecore/log"
)

const healthLoggerComponentName = "CacheHealthMonitor"

// HealthState classifies the overall cache health.
type HealthState string

const (
	// HealthStateHealthy means no threshold is violated.
	HealthStateHealthy HealthState = "healthy"
	// HealthStateDegraded means at least one threshold is violated.
	HealthStateDegraded HealthState = "degraded"
	// HealthStateUnhealthy means a high or critical violation exists.
	HealthStateUnhealthy HealthState = "unhealthy"
)

// IssueSeverity grades a single health issue.
type IssueSeverity string

const (
	// SeverityMedium marks a violation within 2x of the threshold margin.
	SeverityMedium IssueSeverity = "medium"
	// SeverityHigh marks a violation beyond 2x of the threshold margin.
	SeverityHigh IssueSeverity = "high"
	// SeverityCritical marks a failure of the monitoring itself.
	SeverityCritical IssueSeverity = "critical"
)

// HealthIssue describes a single threshold violation.
type HealthIssue struct {
	Code     string
	Severity IssueSeverity
	Message  string
}

// HealthStatus is one aggregate health snapshot.
type HealthStatus struct {
	State          HealthState
	Issues         []HealthIssue
	HitRate        float64
	ErrorRate      float64
	AvailableSpace float64
	ResponseTime   time.Duration
	CheckedAt      time.Time
}

// HealthThresholds bounds the aggregate metrics.
type HealthThresholds struct {
	MinHitRate        float64
	MaxErrorRate      float64
	MinAvailableSpace float64
	MaxResponseTime   time.Duration
}

// DefaultHealthThresholds returns the default metric bounds.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		MinHitRate:        0.7,
		MaxErrorRate:      0.05,
		MinAvailableSpace: 0.1,
		MaxResponseTime:   100 * time.Millisecond,
	}
}

// HealthStatusListener is notified when the health status changes.
type HealthStatusListener interface {
	OnHealthStatusChanged(current, previous HealthStatus)
}

// Notification deltas below which a metric movement counts as noise.
const (
	hitRateNotifyDelta        = 0.1
	errorRateNotifyDelta      = 0.05
	availableSpaceNotifyDelta = 0.1
)

// CacheHealthMonitor periodically evaluates the manager's aggregate
// statistics against thresholds and notifies listeners on meaningful
// changes. A failing check is converted into a synthetic unhealthy status,
// never a panic out of the check cycle.
type CacheHealthMonitor struct {
	manager    *CacheManager
	thresholds HealthThresholds
	interval   time.Duration

	mu        sync.Mutex
	listeners []HealthStatusListener
	last      HealthStatus
	hasLast   bool

	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewCacheHealthMonitor creates a monitor over the given manager. Zero
// values select the default interval and thresholds.
func NewCacheHealthMonitor(manager *CacheManager, thresholds HealthThresholds,
	interval time.Duration) *CacheHealthMonitor {
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	if thresholds == (HealthThresholds{}) {
		thresholds = DefaultHealthThresholds()
	}
	return &CacheHealthMonitor{
		manager:    manager,
		thresholds: thresholds,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// NewCacheHealthMonitorFromConfig builds a monitor from configuration.
// CheckInterval is in seconds and MaxResponseTime in milliseconds; zero
// values select the defaults.
func NewCacheHealthMonitorFromConfig(manager *CacheManager,
	cfg config.HealthConfig) *CacheHealthMonitor {
	thresholds := DefaultHealthThresholds()
	if cfg.MinHitRate > 0 {
		thresholds.MinHitRate = cfg.MinHitRate
	}
	if cfg.MaxErrorRate > 0 {
		thresholds.MaxErrorRate = cfg.MaxErrorRate
	}
	if cfg.MinAvailableSpace > 0 {
		thresholds.MinAvailableSpace = cfg.MinAvailableSpace
	}
	if cfg.MaxResponseTime > 0 {
		thresholds.MaxResponseTime = time.Duration(cfg.MaxResponseTime) * time.Millisecond
	}
	return NewCacheHealthMonitor(manager, thresholds,
		time.Duration(cfg.CheckInterval)*time.Second)
}

// AddListener registers a health status listener.
func (m *CacheHealthMonitor) AddListener(listener HealthStatusListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Start runs one immediate check and then checks on every interval until
// Stop.
func (m *CacheHealthMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.RunCheck()
	go m.loop()
}

// Stop cancels the check loop. It is safe to call more than once.
func (m *CacheHealthMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// Status returns the most recent health snapshot.
func (m *CacheHealthMonitor) Status() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RunCheck performs one health check and dispatches notifications.
func (m *CacheHealthMonitor) RunCheck() {
	status := m.check()

	m.mu.Lock()
	previous := m.last
	hadPrevious := m.hasLast
	m.last = status
	m.hasLast = true
	notify := !hadPrevious || shouldNotify(previous, status)
	listeners := make([]HealthStatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !notify {
		return
	}
	for _, listener := range listeners {
		m.notifyListener(listener, status, previous)
	}
}

// check computes one health snapshot. Failures inside the evaluation are
// converted into a synthetic critical monitoring-error status.
func (m *CacheHealthMonitor) check() (status HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger().With(log.String(log.LoggerKeyComponentName, healthLoggerComponentName)).
				Error("Health check failed", log.Any("panic", r))
			status = HealthStatus{
				State: HealthStateUnhealthy,
				Issues: []HealthIssue{{
					Code:     "monitoring-error",
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("health check failed: %v", r),
				}},
				CheckedAt: time.Now(),
			}
		}
	}()

	stats := m.manager.GetStatistics()
	responseTime := m.manager.GetOverallAverageResponseTime()

	availableSpace := 1.0
	if maxSize := m.manager.GetMaxSize(); maxSize > 0 {
		availableSpace = 1.0 - float64(stats.Size)/float64(maxSize)
	}
	var errorRate float64
	if totalOps := stats.Hits + stats.Misses + stats.Sets + stats.Deletes; totalOps > 0 {
		errorRate = float64(stats.Errors) / float64(totalOps)
	}

	status = HealthStatus{
		HitRate:        stats.HitRate,
		ErrorRate:      errorRate,
		AvailableSpace: availableSpace,
		ResponseTime:   responseTime,
		CheckedAt:      time.Now(),
	}

	t := m.thresholds
	if stats.Hits+stats.Misses > 0 && status.HitRate < t.MinHitRate {
		status.Issues = append(status.Issues, HealthIssue{
			Code:     "low-hit-rate",
			Severity: severityBelow(status.HitRate, t.MinHitRate),
			Message:  fmt.Sprintf("hit rate %.2f below threshold %.2f", status.HitRate, t.MinHitRate),
		})
	}
	if status.ErrorRate > t.MaxErrorRate {
		status.Issues = append(status.Issues, HealthIssue{
			Code:     "high-error-rate",
			Severity: severityAbove(status.ErrorRate, t.MaxErrorRate),
			Message:  fmt.Sprintf("error rate %.3f above threshold %.3f", status.ErrorRate, t.MaxErrorRate),
		})
	}
	if status.AvailableSpace < t.MinAvailableSpace {
		status.Issues = append(status.Issues, HealthIssue{
			Code:     "low-available-space",
			Severity: severityBelow(status.AvailableSpace, t.MinAvailableSpace),
			Message: fmt.Sprintf("available space %.2f below threshold %.2f",
				status.AvailableSpace, t.MinAvailableSpace),
		})
	}
	if t.MaxResponseTime > 0 && responseTime > t.MaxResponseTime {
		status.Issues = append(status.Issues, HealthIssue{
			Code:     "slow-response",
			Severity: severityAbove(float64(responseTime), float64(t.MaxResponseTime)),
			Message:  fmt.Sprintf("average response time %s above threshold %s", responseTime, t.MaxResponseTime),
		})
	}

	status.State = overallState(status.Issues)
	return status
}

// loop runs the periodic check until Stop.
func (m *CacheHealthMonitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunCheck()
		case <-m.done:
			return
		}
	}
}

// notifyListener invokes a single listener, isolating its panics.
func (m *CacheHealthMonitor) notifyListener(listener HealthStatusListener, current,
	previous HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger().With(log.String(log.LoggerKeyComponentName, healthLoggerComponentName)).
				Warn("Health status listener panicked", log.Any("panic", r))
		}
	}()
	listener.OnHealthStatusChanged(current, previous)
}

// severityBelow grades a metric that must stay above its threshold: high
// when it has fallen below half the threshold.
func severityBelow(value, threshold float64) IssueSeverity {
	if value < threshold/2 {
		return SeverityHigh
	}
	return SeverityMedium
}

// severityAbove grades a metric that must stay below its threshold: high
// when it has grown beyond twice the threshold.
func severityAbove(value, threshold float64) IssueSeverity {
	if value > threshold*2 {
		return SeverityHigh
	}
	return SeverityMedium
}

// overallState derives the status level from the issue list.
func overallState(issues []HealthIssue) HealthState {
	if len(issues) == 0 {
		return HealthStateHealthy
	}
	for _, issue := range issues {
		if issue.Severity == SeverityHigh || issue.Severity == SeverityCritical {
			return HealthStateUnhealthy
		}
	}
	return HealthStateDegraded
}

// shouldNotify suppresses notifications for noise: listeners are only told
// when the level changed, the issue count changed, or a metric moved by more
// than its delta.
func shouldNotify(previous, current HealthStatus) bool {
	if previous.State != current.State {
		return true
	}
	if len(previous.Issues) != len(current.Issues) {
		return true
	}
	if math.Abs(current.HitRate-previous.HitRate) > hitRateNotifyDelta {
		return true
	}
	if math.Abs(current.ErrorRate-previous.ErrorRate) > errorRateNotifyDelta {
		return true
	}
	if math.Abs(current.AvailableSpace-previous.AvailableSpace) > availableSpaceNotifyDelta {
		return true
	}
	return false
}
