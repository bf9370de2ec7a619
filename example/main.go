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

// Command demo leases one connection to example.com:80, writes a minimal
// HTTP request, prints the first read of the response (at most 256 bytes),
// and releases the
// connection back to the pool -- the end-to-end wiring doc.go sketches.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	connpool "github.com/kirill-usov/httpcomponents-core"
	"github.com/kirill-usov/httpcomponents-core/reactor"
)

type hostRoute struct {
	hostport string
}

type dnsResolver struct{}

func (dnsResolver) ResolveRemote(route hostRoute) (net.Addr, error) {
	return net.ResolveTCPAddr("tcp", route.hostport)
}

func (dnsResolver) ResolveLocal(route hostRoute) (net.Addr, error) {
	return nil, nil
}

type tcpFactory struct{}

func (tcpFactory) Create(route hostRoute, session connpool.Session) (*connpool.TrackedConn, error) {
	return connpool.NewTrackedConn(session.Conn()), nil
}

func main() {
	dialer := reactor.NewDialer()
	pool := connpool.NewPool[hostRoute, struct{}, *connpool.TrackedConn](
		50, 5, dnsResolver{}, tcpFactory{}, dialer,
	)
	defer pool.Shutdown(5 * time.Second)

	route := hostRoute{"example.com:80"}
	future, err := pool.Lease(route, struct{}{}, false, 5*time.Second, 0, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lease:", err)
		os.Exit(1)
	}

	entry, err := future.Get(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}

	conn := entry.Conn()
	reusable := true
	defer func() { pool.Release(entry, reusable) }()

	if _, err := conn.Write([]byte("GET / HTTP/1.0\r\nHost: example.com\r\n\r\n")); err != nil {
		reusable = conn.Reusable()
		fmt.Fprintln(os.Stderr, "write:", err)
		return
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	reusable = conn.Reusable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		return
	}
	fmt.Printf("%s\n", buf[:n])
}
