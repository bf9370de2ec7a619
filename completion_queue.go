/*
 * Copyright 2026 The httpcomponents-core Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package connpool

import (
	"io"
	"sync"
)

// completionQueue is the MPSC queue of LeaseRequests whose futures still
// need notification (spec.md §3, "completedRequests"). It is guarded by its
// own mutex, entirely separate from the Pool's main lock, so that draining
// it -- and therefore invoking caller callbacks -- never happens while the
// pool lock is held. That is what lets a callback safely re-enter Lease or
// Release (spec.md §5).
type completionQueue[R comparable, S comparable, C io.Closer] struct {
	mu    sync.Mutex
	items []*LeaseRequest[R, S, C]
}

func newCompletionQueue[R comparable, S comparable, C io.Closer]() *completionQueue[R, S, C] {
	return &completionQueue[R, S, C]{}
}

// push enqueues a terminal request. Safe to call with or without the pool
// lock held.
func (q *completionQueue[R, S, C]) push(req *LeaseRequest[R, S, C]) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
}

// drain atomically empties the queue and returns everything that was in it.
func (q *completionQueue[R, S, C]) drain() []*LeaseRequest[R, S, C] {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// fireCallbacks drains the queue and fires every request's terminal
// outcome. Must be called with the pool lock NOT held.
func (q *completionQueue[R, S, C]) fireCallbacks() {
	for _, req := range q.drain() {
		req.fire()
	}
}
