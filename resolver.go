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
)

// AddressResolver resolves a route to the socket addresses a connect
// attempt should use. ResolveLocal may return a nil address, meaning "let
// the reactor pick".
type AddressResolver[R comparable] interface {
	ResolveRemote(route R) (net.Addr, error)
	ResolveLocal(route R) (net.Addr, error)
}

// ConnectionFactory builds a wire-level connection C from a ready I/O
// session for route R. C must satisfy io.Closer so the pool core can tear
// it down on eviction, cap reduction or shutdown without a second injected
// hook.
type ConnectionFactory[R comparable, C io.Closer] interface {
	Create(route R, session Session) (C, error)
}

// Session is the ready I/O session handed to a ConnectionFactory once a
// connect attempt completes. It is deliberately minimal: the factory reads
// whatever it needs off the underlying net.Conn.
type Session interface {
	Conn() net.Conn
}
