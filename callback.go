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
	"net"
	"time"
)

// ReactorStatus is the ordered lifecycle of the injected I/O reactor. Only
// the Cancelled handler consults it (spec.md §4.6).
type ReactorStatus int

const (
	ReactorInactive ReactorStatus = iota
	ReactorActive
	ReactorShuttingDown
	ReactorShutDown
)

// Handle is a single outstanding asynchronous connect attempt.
type Handle interface {
	// ID uniquely identifies this attempt; the pool core uses it as the key
	// into its pending-connect bookkeeping.
	ID() string
	// SetConnectTimeout bounds how long the reactor will wait before
	// invoking the callback's Timeout method.
	SetConnectTimeout(d time.Duration)
	// Cancel requests the reactor abandon this attempt. The callback's
	// Cancelled method fires once it has.
	Cancel()
	// Attachment returns the opaque value passed to Connect -- the route,
	// by convention of this package (spec.md §9, "attachment typing").
	Attachment() any
	// Session returns the ready I/O session once Completed has fired.
	Session() Session
	// Exception returns the failure reported to Failed, if any.
	Exception() error
}

// ConnectCallback receives the four possible outcomes of one asynchronous
// connect attempt. Exactly one method fires, exactly once, per Handle.
type ConnectCallback interface {
	Completed(h Handle)
	Cancelled(h Handle)
	Failed(h Handle, err error)
	Timeout(h Handle)
}

// ConnectionInitiator is the asynchronous, non-blocking connect operation
// the pool core consumes. It is supplied by an external I/O reactor; this
// package never implements one itself (spec.md §1) beyond the optional
// reference dialer in the reactor subpackage.
type ConnectionInitiator interface {
	Connect(remote, local net.Addr, attachment any, callback ConnectCallback) Handle
	Status() ReactorStatus
	Shutdown(deadline time.Duration)
}

// internalConnectCallback adapts the reactor's four connect outcomes back
// into the pool core, carrying the route and the handle identity the core
// needs to look up the right RouteSpecificPool and pending record
// (spec.md §4.6).
type internalConnectCallback[R comparable, S comparable, C io.Closer] struct {
	pool  *Pool[R, S, C]
	route R
}

func (cb *internalConnectCallback[R, S, C]) Completed(h Handle) {
	cb.pool.onConnectCompleted(cb.route, h)
}

func (cb *internalConnectCallback[R, S, C]) Cancelled(h Handle) {
	cb.pool.onConnectCancelled(cb.route, h)
}

func (cb *internalConnectCallback[R, S, C]) Failed(h Handle, err error) {
	cb.pool.onConnectFailed(cb.route, h, err)
}

func (cb *internalConnectCallback[R, S, C]) Timeout(h Handle) {
	cb.pool.onConnectTimeout(cb.route, h)
}
