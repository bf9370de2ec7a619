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
	"time"
)

// Maintainer periodically runs the pool's housekeeping sweeps --
// ValidatePendingRequests, CloseExpired and CloseIdle -- on its own ticker.
// The pool core never spawns goroutines itself (spec.md §5 treats it as a
// passive shared object); this is the opt-in helper a caller wires up
// instead, mirroring the periodic audit the original Java reactor ran on
// its own event thread (original_source/.../DefaultConnectingIOReactor.java).
type Maintainer[R comparable, S comparable, C io.Closer] struct {
	pool     *Pool[R, S, C]
	interval time.Duration
	idleTime time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewMaintainer builds a Maintainer that sweeps pool every interval,
// closing idle entries older than idleTime (a non-positive idleTime means
// closeIdle is skipped, not "close everything" -- see CloseIdle).
func NewMaintainer[R comparable, S comparable, C io.Closer](pool *Pool[R, S, C], interval, idleTime time.Duration) *Maintainer[R, S, C] {
	return &Maintainer[R, S, C]{
		pool:     pool,
		interval: interval,
		idleTime: idleTime,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. Start must only be called
// once.
func (m *Maintainer[R, S, C]) Start() {
	go m.run()
}

func (m *Maintainer[R, S, C]) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.pool.IsShutDown() {
				return
			}
			m.pool.ValidatePendingRequests()
			m.pool.CloseExpired()
			if m.idleTime > 0 {
				m.pool.CloseIdle(m.idleTime)
			}
		}
	}
}

// Stop ends the sweep loop and waits for it to exit.
func (m *Maintainer[R, S, C]) Stop() {
	close(m.stop)
	<-m.done
}
