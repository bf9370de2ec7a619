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

// Entry is a handle to one live connection, parameterized by the route it
// was opened for and an optional caller-supplied state discriminator used
// for reuse affinity (e.g. authenticated vs unauthenticated). C must be an
// io.Closer so the pool core can close entries it evicts or discards
// without any caller-supplied teardown hook.
//
// Once Closed reports true it never reports false again. UpdatedAt is never
// before CreatedAt.
type Entry[R comparable, S comparable, C io.Closer] struct {
	id        string
	route     R
	state     S
	hasState  bool
	conn      C
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
	hasExpiry bool
	closed    bool
}

// ID returns the entry's unique, creation-ordered identifier.
func (e *Entry[R, S, C]) ID() string { return e.id }

// Route returns the route this entry was opened for.
func (e *Entry[R, S, C]) Route() R { return e.route }

// State returns the state discriminator stored with this entry, and whether
// one was set at all.
func (e *Entry[R, S, C]) State() (S, bool) { return e.state, e.hasState }

// Conn returns the underlying connection value.
func (e *Entry[R, S, C]) Conn() C { return e.conn }

// CreatedAt returns when the entry was created.
func (e *Entry[R, S, C]) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the entry was last released back to the pool.
func (e *Entry[R, S, C]) UpdatedAt() time.Time { return e.updatedAt }

// Closed reports whether this entry has been permanently closed. Sticky:
// once true, always true.
func (e *Entry[R, S, C]) Closed() bool { return e.closed }

// Expired reports whether this entry's expiry predicate fires at now. An
// entry with no configured expiry never expires.
func (e *Entry[R, S, C]) Expired(now time.Time) bool {
	if !e.hasExpiry {
		return false
	}
	return !now.Before(e.expiresAt)
}

// SetExpiry configures a hard expiry for this entry; a zero time clears it.
func (e *Entry[R, S, C]) SetExpiry(at time.Time) {
	e.hasExpiry = !at.IsZero()
	e.expiresAt = at
}

// touch marks the entry as just-released, updating its LRU timestamp.
// Callers hold the pool lock.
func (e *Entry[R, S, C]) touch(now time.Time) {
	e.updatedAt = now
}

// close closes the underlying connection and marks the entry permanently
// closed. A second call is a no-op; the connection is closed only once.
func (e *Entry[R, S, C]) close() {
	if e.closed {
		return
	}
	e.closed = true
	_ = e.conn.Close()
}

func newEntry[R comparable, S comparable, C io.Closer](id string, route R, conn C, state S, hasState bool, now time.Time) *Entry[R, S, C] {
	return &Entry[R, S, C]{
		id:        id,
		route:     route,
		conn:      conn,
		state:     state,
		hasState:  hasState,
		createdAt: now,
		updatedAt: now,
	}
}
