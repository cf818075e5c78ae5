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

// Package event defines the domain event model and the publish/subscribe
// contract consumed by the caching engine.
package event

import (
	"strings"
	"time"
)

// Lifecycle event types published by the cache manager.
const (
	TypeCacheHit    = "cache.hit"
	TypeCacheMiss   = "cache.miss"
	TypeCacheSet    = "cache.set"
	TypeCacheDelete = "cache.delete"
	TypeCacheClear  = "cache.clear"
	TypeCacheError  = "cache.error"
)

// Event represents a single domain event.
type Event struct {
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}

// New creates an event of the given type carrying the given payload.
func New(eventType string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Namespace returns the portion of the event type before the first dot,
// or the whole type when it has no namespace.
func (e Event) Namespace() string {
	if idx := strings.Index(e.Type, "."); idx >= 0 {
		return e.Type[:idx]
	}
	return e.Type
}

// Handler processes events it has subscribed to.
type Handler interface {
	// Handle processes a single event.
	Handle(event Event) error

	// CanHandle reports whether the handler accepts events of the given type.
	CanHandle(eventType string) bool
}

// Publisher publishes events to interested subscribers. Delivery is
// best-effort: implementations must never propagate handler failures to
// the publishing caller.
type Publisher interface {
	Publish(event Event)
}

// Subscriber registers handlers for event types. The pattern may be an exact
// type, the global wildcard "*", or a namespace wildcard such as "user.*".
type Subscriber interface {
	Subscribe(pattern string, handler Handler)
}
