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
	"net"
	"sync"
)

// TrackedConn wraps a net.Conn produced by a ConnectionFactory and records
// whether it has seen an unrecoverable I/O error, so a caller can decide
// Release's reusable argument with Reusable() instead of tracking that
// itself. A temporary net.Error (per the Temporary() convention) does not
// poison the connection; anything else does, permanently.
type TrackedConn struct {
	net.Conn

	mu  sync.RWMutex
	err error
}

// NewTrackedConn wraps conn for error tracking.
func NewTrackedConn(conn net.Conn) *TrackedConn {
	return &TrackedConn{Conn: conn}
}

// Err returns the first unrecoverable error observed, if any.
func (c *TrackedConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Reusable reports whether this connection may be returned to the pool --
// true iff no unrecoverable error has been observed.
func (c *TrackedConn) Reusable() bool {
	return c.Err() == nil
}

func (c *TrackedConn) setErr(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if nerr, ok := err.(net.Error); ok && nerr.Temporary() {
		return
	}
	c.err = err
}

func (c *TrackedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.setErr(err)
	return n, err
}

func (c *TrackedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.setErr(err)
	return n, err
}

// Close closes the underlying connection. It does not itself release the
// entry back to the pool -- callers call Pool.Release(entry,
// conn.Reusable()) explicitly once they're done, the same way they got the
// entry from Future.Get.
func (c *TrackedConn) Close() error {
	return c.Conn.Close()
}
