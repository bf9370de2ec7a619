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
	"context"
	"io"
	"time"
)

type terminalKind int

const (
	statePending terminalKind = iota
	stateCompleted
	stateFailed
	stateCancelled
)

// LeaseRequest ties a caller's future to the route/state it asked for, a
// connect-timeout deadline, and its eventual completion record. Transitions
// are one-way: pending -> {completed, failed, cancelled}, and terminal is
// sticky.
type LeaseRequest[R comparable, S comparable, C io.Closer] struct {
	route          R
	state          S
	hasState       bool
	deadline       time.Time // zero value never compares: see noDeadline below
	connectTimeout time.Duration
	leaseTimeout   time.Duration
	callback       func(*Entry[R, S, C], error)

	kind   terminalKind
	result *Entry[R, S, C]
	err    error

	done chan struct{}
}

// noDeadline is an effectively-unbounded deadline: connect_timeout <= 0
// means "wait forever" per spec.md §4.2.
var noDeadline = time.Unix(1<<62, 0)

func newLeaseRequest[R comparable, S comparable, C io.Closer](route R, state S, hasState bool, connectTimeout time.Duration, now time.Time, callback func(*Entry[R, S, C], error)) *LeaseRequest[R, S, C] {
	deadline := noDeadline
	if connectTimeout > 0 {
		deadline = now.Add(connectTimeout)
	}
	return &LeaseRequest[R, S, C]{
		route:          route,
		state:          state,
		hasState:       hasState,
		deadline:       deadline,
		connectTimeout: connectTimeout,
		callback:       callback,
		kind:           statePending,
		done:           make(chan struct{}),
	}
}

// isTerminal reports whether this request already has a terminal outcome.
// Callers hold the pool lock.
func (r *LeaseRequest[R, S, C]) isTerminal() bool {
	return r.kind != statePending
}

// expired reports whether now is past this request's deadline. Callers hold
// the pool lock.
func (r *LeaseRequest[R, S, C]) expired(now time.Time) bool {
	return now.After(r.deadline)
}

// complete marks the request satisfied with e. Callers hold the pool lock;
// delivery to Future/callback happens later, outside the lock, via
// fireCallbacks.
func (r *LeaseRequest[R, S, C]) complete(e *Entry[R, S, C]) {
	if r.isTerminal() {
		return
	}
	r.kind = stateCompleted
	r.result = e
}

// fail marks the request failed with err. Callers hold the pool lock.
func (r *LeaseRequest[R, S, C]) fail(err error) {
	if r.isTerminal() {
		return
	}
	r.kind = stateFailed
	r.err = err
}

// cancel marks the request cancelled. Callers hold the pool lock.
func (r *LeaseRequest[R, S, C]) cancel() {
	if r.isTerminal() {
		return
	}
	r.kind = stateCancelled
}

// fire delivers the terminal outcome to the callback (if any) and to the
// Future. It is invoked once per request, outside the pool lock: from
// fireCallbacks, or directly by Pool.Shutdown for requests it cancels.
func (r *LeaseRequest[R, S, C]) fire() {
	if r.callback != nil {
		r.callback(r.result, r.errorValue())
	}
	close(r.done)
}

func (r *LeaseRequest[R, S, C]) errorValue() error {
	switch r.kind {
	case stateFailed:
		return r.err
	case stateCancelled:
		return errCancelled(r.route)
	default:
		return nil
	}
}

// Future is the caller-facing handle returned by Pool.Lease. It resolves
// once the underlying LeaseRequest reaches a terminal state.
type Future[R comparable, S comparable, C io.Closer] struct {
	req *LeaseRequest[R, S, C]
}

// Get blocks until the lease is satisfied, fails, is cancelled, or ctx is
// done, whichever comes first.
func (f *Future[R, S, C]) Get(ctx context.Context) (*Entry[R, S, C], error) {
	select {
	case <-f.req.done:
		return f.req.result, f.req.errorValue()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the lease reaches a terminal state.
func (f *Future[R, S, C]) Done() <-chan struct{} {
	return f.req.done
}
