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

// Package connpool is a non-blocking, route-partitioned connection pool.
//
// It sits between asynchronous callers and an injected, non-blocking
// connection initiator: it leases reusable connections, opens new ones
// through the initiator when necessary, and enforces per-route and global
// concurrency caps while keeping FIFO fairness across waiting callers.
//
// The pool itself never does I/O. Three collaborators are injected:
//
//   - a ConnectionInitiator, which performs the actual asynchronous connect
//     (see the reactor subpackage for a minimal reference dialer)
//   - an AddressResolver, which turns a route into socket addresses
//   - a ConnectionFactory, which turns a ready Session into the caller's
//     wire-level connection type C
//
// A route is any comparable key the caller chooses -- typically a host/port
// pair plus whatever per-connection parameters affect routing. State is an
// optional comparable discriminator used to prefer reuse of entries that
// match it (e.g. authenticated vs unauthenticated).
//
// Example:
//
//	type route struct{ host string }
//
//	pool := connpool.NewPool[route, struct{}, net.Conn](
//		100, 10, resolver, factory, initiator,
//	)
//
//	future, err := pool.Lease(route{"example.com:443"}, struct{}{}, false,
//		5*time.Second, 0, nil)
//	if err != nil {
//		// pool is shut down
//	}
//	entry, err := future.Get(context.Background())
//	if err != nil {
//		// timeout, cancelled, or I/O failure
//	}
//	defer pool.Release(entry, err == nil)
//
// Every asynchronous outcome -- reuse, new connect, timeout, cancellation,
// I/O failure -- flows through the same completion queue and is delivered
// to the returned Future outside the pool's internal lock, so callbacks may
// safely call back into Lease or Release.
package connpool
