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
	"sort"
	"sync"
	"time"

	"github.com/asgardeo/cachecore/event"
	"github.com/asgardeo/cachecore/log"
)

const invalidationLoggerComponentName = "CacheInvalidationHandler"

// InvalidationPattern maps trigger event types onto a glob key pattern
// within one domain. Matching keys are deleted, or rewritten with a shorter
// TTL when TTL is set.
type InvalidationPattern struct {
	// Domain is the cache partition the pattern applies to.
	Domain CacheDomain

	// KeyPattern is the glob matched against the domain's keys.
	KeyPattern string

	// DependsOn lists the event types that trigger the pattern. An entry
	// may be an exact type, "*", or a namespace wildcard "ns.*".
	DependsOn []string

	// Condition optionally filters events by payload. A nil condition
	// accepts every event.
	Condition func(payload map[string]any) bool

	// Priority orders pattern evaluation (descending). All matching
	// patterns are still applied; priority never short-circuits.
	Priority int

	// TTL, when positive, rewrites matching entries with this shorter TTL
	// instead of deleting them.
	TTL time.Duration

	// Cascading is declared for downstream tooling; the handler itself
	// does not expand cascades.
	Cascading bool
}

// registeredPattern carries a registration identity so a pattern indexed
// under several triggers is applied at most once per event.
type registeredPattern struct {
	InvalidationPattern
	id int
}

// CacheInvalidationHandler applies invalidation patterns in response to
// domain events. It implements event.Handler so it can be subscribed to an
// event substrate.
type CacheInvalidationHandler struct {
	manager *CacheManager

	mu       sync.RWMutex
	patterns map[string][]registeredPattern
	nextID   int
}

// NewCacheInvalidationHandler creates a handler over the given manager.
func NewCacheInvalidationHandler(manager *CacheManager) *CacheInvalidationHandler {
	return &CacheInvalidationHandler{
		manager:  manager,
		patterns: make(map[string][]registeredPattern),
	}
}

// Register indexes a pattern under every event type it depends on, keeping
// each list sorted by descending priority.
func (h *CacheInvalidationHandler) Register(pattern InvalidationPattern) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	registered := registeredPattern{InvalidationPattern: pattern, id: h.nextID}
	for _, eventType := range pattern.DependsOn {
		patterns := append(h.patterns[eventType], registered)
		sort.SliceStable(patterns, func(i, j int) bool {
			return patterns[i].Priority > patterns[j].Priority
		})
		h.patterns[eventType] = patterns
	}
}

// SubscribeTo registers the handler with the event substrate for every
// trigger it knows about.
func (h *CacheInvalidationHandler) SubscribeTo(subscriber event.Subscriber) {
	h.mu.RLock()
	triggers := make([]string, 0, len(h.patterns))
	for trigger := range h.patterns {
		triggers = append(triggers, trigger)
	}
	h.mu.RUnlock()

	for _, trigger := range triggers {
		subscriber.Subscribe(trigger, h)
	}
}

// CanHandle reports whether any registered pattern is triggered by the
// given event type.
func (h *CacheInvalidationHandler) CanHandle(eventType string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for trigger := range h.patterns {
		if event.MatchesPattern(eventType, trigger) {
			return true
		}
	}
	return false
}

// Handle applies every candidate pattern to the event. A failing pattern is
// logged and skipped; it never prevents the remaining candidates from
// running.
func (h *CacheInvalidationHandler) Handle(ev event.Event) error {
	for _, pattern := range h.candidates(ev) {
		h.apply(pattern, ev)
	}
	return nil
}

// candidates resolves the patterns registered for the event's exact type,
// the global wildcard, and the event's namespace wildcard, in priority
// order within each group. A pattern reachable through several triggers
// appears once.
func (h *CacheInvalidationHandler) candidates(ev event.Event) []InvalidationPattern {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := [][]registeredPattern{h.patterns[ev.Type], h.patterns["*"]}
	if ns := ev.Namespace(); ns != ev.Type {
		groups = append(groups, h.patterns[ns+".*"])
	}

	seen := make(map[int]struct{})
	candidates := make([]InvalidationPattern, 0)
	for _, group := range groups {
		for _, registered := range group {
			if _, dup := seen[registered.id]; dup {
				continue
			}
			seen[registered.id] = struct{}{}
			candidates = append(candidates, registered.InvalidationPattern)
		}
	}
	return candidates
}

// apply invalidates the keys matching one pattern, isolating its failures.
func (h *CacheInvalidationHandler) apply(pattern InvalidationPattern, ev event.Event) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, invalidationLoggerComponentName),
		log.String(log.LoggerKeyCacheDomain, string(pattern.Domain)))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Invalidation pattern failed", log.String("keyPattern", pattern.KeyPattern),
				log.Any("panic", r))
		}
	}()

	if pattern.Condition != nil && !pattern.Condition(ev.Payload) {
		return
	}

	ctx := context.Background()
	keys := h.manager.Keys(ctx, pattern.Domain, pattern.KeyPattern)
	if len(keys) == 0 {
		return
	}

	for _, key := range keys {
		if pattern.TTL > 0 {
			// Re-read and rewrite with the shorter TTL instead of deleting.
			if value, found := h.manager.Get(ctx, pattern.Domain, key); found {
				h.manager.Set(ctx, pattern.Domain, key, value, CacheOptions{TTL: pattern.TTL})
			}
			continue
		}
		h.manager.Delete(ctx, pattern.Domain, key)
	}

	logger.Debug("Invalidation pattern applied", log.String("keyPattern", pattern.KeyPattern),
		log.String("eventType", ev.Type), log.Int("keys", len(keys)))
}
