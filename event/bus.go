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

package event

import (
	"strings"
	"sync"

	"github.com/asgardeo/cachecore/log"
)

const busLoggerComponentName = "EventBus"

// Bus is an in-process implementation of Publisher and Subscriber.
// Handler failures and panics are isolated per handler: one failing
// subscriber never prevents delivery to the rest, nor fails the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates a new in-process event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the given pattern. The pattern may be an
// exact event type, the global wildcard "*", or a namespace wildcard "ns.*".
func (b *Bus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = append(b.handlers[pattern], handler)
}

// Publish delivers the event to every handler subscribed to its exact type,
// the global wildcard, or its namespace wildcard. A handler subscribed under
// several matching patterns is delivered to once.
func (b *Bus) Publish(event Event) {
	patterns := []string{event.Type, "*"}
	if ns := event.Namespace(); ns != event.Type {
		patterns = append(patterns, ns+".*")
	}

	b.mu.RLock()
	seen := make(map[Handler]struct{})
	candidates := make([]Handler, 0)
	for _, pattern := range patterns {
		for _, handler := range b.handlers[pattern] {
			if _, dup := seen[handler]; dup {
				continue
			}
			seen[handler] = struct{}{}
			candidates = append(candidates, handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range candidates {
		if !handler.CanHandle(event.Type) {
			continue
		}
		b.deliver(handler, event)
	}
}

// deliver invokes a single handler, recovering panics so that delivery to
// the remaining handlers continues.
func (b *Bus) deliver(handler Handler, event Event) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, busLoggerComponentName))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked", log.String("eventType", event.Type), log.Any("panic", r))
		}
	}()

	if err := handler.Handle(event); err != nil {
		logger.Warn("Event handler returned an error", log.String("eventType", event.Type), log.Error(err))
	}
}

// MatchesPattern reports whether an event type matches a subscription
// pattern (exact, "*", or "ns.*").
func MatchesPattern(eventType, pattern string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
