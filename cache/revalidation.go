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
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/asgardeo/cachecore/log"
)

const revalidationLoggerComponentName = "RevalidationQueue"

// revalidationTask is a pending background refresh of one key.
type revalidationTask struct {
	key     string
	fetcher FetchFunc
	opts    CacheOptions
}

// RevalidationQueue refreshes cache entries in the background. Tasks are
// drained on a fixed polling tick; a weighted semaphore bounds the number of
// fetchers in flight. Task failures are logged and never surfaced, since the
// caller that enqueued the task already received a usable stale value.
type RevalidationQueue struct {
	adapter CacheAdapter
	sem     *semaphore.Weighted

	mu      sync.Mutex
	pending []*revalidationTask
	queued  map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewRevalidationQueue creates a queue over the given adapter and starts its
// polling loop. Zero tick or maxConcurrent select the defaults.
func NewRevalidationQueue(adapter CacheAdapter, tick time.Duration, maxConcurrent int) *RevalidationQueue {
	if tick <= 0 {
		tick = defaultRevalidationTick
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRevalidations
	}

	q := &RevalidationQueue{
		adapter: adapter,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		queued:  make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	go q.loop(tick)
	return q
}

// Enqueue schedules a background refresh of key. A key already waiting in
// the queue is not enqueued twice.
func (q *RevalidationQueue) Enqueue(key string, fetcher FetchFunc, opts CacheOptions) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, waiting := q.queued[key]; waiting {
		return false
	}
	q.queued[key] = struct{}{}
	q.pending = append(q.pending, &revalidationTask{key: key, fetcher: fetcher, opts: opts})
	return true
}

// PendingCount returns the number of tasks waiting for a concurrency slot.
func (q *RevalidationQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop cancels the polling loop. Tasks already in flight run to completion.
// It is safe to call more than once.
func (q *RevalidationQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
}

// loop drains the queue on every tick, filling available concurrency slots.
func (q *RevalidationQueue) loop(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.drain()
		case <-q.done:
			return
		}
	}
}

// drain starts pending tasks while concurrency slots are available. Tasks
// that find no free slot wait for the next tick.
func (q *RevalidationQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		if !q.sem.TryAcquire(1) {
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		go q.run(task)
	}
}

// run executes one revalidation task and writes the result back into the
// adapter.
func (q *RevalidationQueue) run(task *revalidationTask) {
	defer q.sem.Release(1)
	defer func() {
		q.mu.Lock()
		delete(q.queued, task.key)
		q.mu.Unlock()
	}()

	value, err := task.fetcher(context.Background())
	if err != nil {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, revalidationLoggerComponentName)).
			Warn("Background revalidation failed", log.String("key", task.key), log.Error(err))
		return
	}
	_ = q.adapter.Set(context.Background(), task.key, value, task.opts)
}
