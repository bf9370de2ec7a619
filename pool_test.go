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
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// --- fakes, in the teacher's style (fakeConn/fakeConnManager from
// uniqush-connpool/pool_test.go) generalized to the route-partitioned core.

type testConn struct {
	id     string
	closed bool
}

func (c *testConn) Close() error {
	c.closed = true
	return nil
}

type testSession struct{}

func (testSession) Conn() net.Conn { return nil }

type testFactory struct {
	mu      sync.Mutex
	n       int
	failErr error
}

func (f *testFactory) Create(route string, _ Session) (*testConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		err := f.failErr
		f.failErr = nil
		return nil, err
	}
	f.n++
	return &testConn{id: fmt.Sprintf("conn-%d", f.n)}, nil
}

type testResolver struct {
	remoteErr error
	localErr  error
}

func (r *testResolver) ResolveRemote(route string) (net.Addr, error) {
	if r.remoteErr != nil {
		return nil, r.remoteErr
	}
	return &net.TCPAddr{}, nil
}

func (r *testResolver) ResolveLocal(route string) (net.Addr, error) {
	if r.localErr != nil {
		return nil, r.localErr
	}
	return nil, nil
}

type testHandle struct {
	id         string
	attachment any
	timeout    time.Duration
}

func (h *testHandle) ID() string                        { return h.id }
func (h *testHandle) SetConnectTimeout(d time.Duration)  { h.timeout = d }
func (h *testHandle) Cancel()                            {}
func (h *testHandle) Attachment() any                    { return h.attachment }
func (h *testHandle) Session() Session                   { return testSession{} }
func (h *testHandle) Exception() error                   { return nil }

type connectCall struct {
	handle   *testHandle
	callback ConnectCallback
}

type testInitiator struct {
	mu       sync.Mutex
	status   ReactorStatus
	calls    []*connectCall
	nextID   int
	shutdown bool
}

func newTestInitiator() *testInitiator {
	return &testInitiator{status: ReactorActive}
}

func (i *testInitiator) Connect(remote, local net.Addr, attachment any, callback ConnectCallback) Handle {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextID++
	h := &testHandle{id: fmt.Sprintf("handle-%d", i.nextID), attachment: attachment}
	i.calls = append(i.calls, &connectCall{handle: h, callback: callback})
	return h
}

func (i *testInitiator) Status() ReactorStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

func (i *testInitiator) Shutdown(time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.shutdown = true
	i.status = ReactorShutDown
}

func (i *testInitiator) call(n int) *connectCall {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[n]
}

func (i *testInitiator) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.calls)
}

func newTestPool(maxTotal, defaultMaxPerRoute int, initiator *testInitiator, factory *testFactory, resolver *testResolver) *Pool[string, string, *testConn] {
	return NewPool[string, string, *testConn](
		maxTotal, defaultMaxPerRoute, resolver, factory, initiator,
		WithLogger[string, string, *testConn](discardLogger),
	)
}

func getEntry(t *testing.T, f *Future[string, string, *testConn]) *Entry[string, string, *testConn] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := f.Get(ctx)
	if err != nil {
		t.Fatalf("future.Get: %v", err)
	}
	return e
}

// Scenario 1: immediate reuse, with onReuse firing before onLease.
func TestLeaseImmediateReuse(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(2, 2, initiator, &testFactory{}, &testResolver{})

	var order []string
	pool.observer = recordingObserver[string, string, *testConn]{order: &order}

	f, err := pool.Lease("r1", "", false, time.Second, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	call := initiator.call(0)
	call.callback.Completed(call.handle)
	e1 := getEntry(t, f)

	pool.Release(e1, true)

	f2, err := pool.Lease("r1", "", false, time.Second, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-f2.Done():
	default:
		t.Fatal("expected synchronous reuse, request is still pending")
	}
	e2 := getEntry(t, f2)
	if e2 != e1 {
		t.Fatalf("expected the same entry to be reused, got %v vs %v", e1, e2)
	}
	if initiator.len() != 1 {
		t.Fatalf("expected exactly one connect attempt, got %d", initiator.len())
	}
	want := []string{"lease", "release", "reuse", "lease"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("observer order = %v, want %v", order, want)
	}
}

type recordingObserver[R comparable, S comparable, C interface{ Close() error }] struct {
	order *[]string
}

func (o recordingObserver[R, S, C]) OnLease(*Entry[R, S, C])   { *o.order = append(*o.order, "lease") }
func (o recordingObserver[R, S, C]) OnRelease(*Entry[R, S, C]) { *o.order = append(*o.order, "release") }
func (o recordingObserver[R, S, C]) OnReuse(*Entry[R, S, C])   { *o.order = append(*o.order, "reuse") }

// Scenario 2: a per-route cap of 1 queues a second lease, which is advanced
// on release of the first.
func TestLeaseRouteCapQueuesAndAdvancesOnRelease(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(10, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	call := initiator.call(0)
	call.callback.Completed(call.handle)
	e1 := getEntry(t, f1)

	f2, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	select {
	case <-f2.Done():
		t.Fatal("second lease should have queued, not completed immediately")
	default:
	}
	if initiator.len() != 1 {
		t.Fatalf("expected the second lease to queue, not dial again; got %d dials", initiator.len())
	}

	pool.Release(e1, true)

	e2 := getEntry(t, f2)
	if e2 != e1 {
		t.Fatalf("expected the queued request to reuse the released entry")
	}
}

// Scenario 3: global cap eviction picks the global LRU idle entry.
func TestGlobalCapEvictsLRU(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(2, 2, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	e1 := getEntry(t, f1)

	f2, _ := pool.Lease("r2", "", false, time.Second, 0, nil)
	c = initiator.call(1)
	c.callback.Completed(c.handle)
	e2 := getEntry(t, f2)

	pool.Release(e1, true) // released first -> least recently used
	pool.Release(e2, true) // released second -> most recently used

	pool.SetMaxPerRoute("r3", 1)
	f3, _ := pool.Lease("r3", "", false, time.Second, 0, nil)
	c = initiator.call(2)
	c.callback.Completed(c.handle)
	_ = getEntry(t, f3)

	stats := pool.GetTotalStats()
	if stats.Available != 1 {
		t.Fatalf("expected exactly one idle entry left after eviction, got %d", stats.Available)
	}
	if !e1.Closed() {
		t.Fatal("expected the LRU entry (e1) to have been evicted and closed")
	}
	if e2.Closed() {
		t.Fatal("expected the MRU entry (e2) to survive eviction")
	}
}

// Scenario 4: a lease past its deadline is failed with Timeout by
// ValidatePendingRequests.
func TestLeaseTimeout(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(1, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	_ = getEntry(t, f1)

	fakeNow := time.Now()
	pool.clock = func() time.Time { return fakeNow }

	f2, _ := pool.Lease("r1", "", false, 50*time.Millisecond, 0, nil)
	select {
	case <-f2.Done():
		t.Fatal("expected the second lease to queue")
	default:
	}

	pool.clock = func() time.Time { return fakeNow.Add(100 * time.Millisecond) }
	pool.ValidatePendingRequests()

	_, err := f2.Get(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("expected a timeout error, got %v", err)
	}
}

// Scenario 5: a connect failure resolves the future with the underlying
// error and does not leave the pending slot occupied.
func TestConnectFailureReleasesCapacity(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(1, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	wantErr := errors.New("connection refused")
	c.callback.Failed(c.handle, wantErr)

	_, err := f1.Get(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsIO(err) {
		t.Fatalf("expected an IO error, got %v", err)
	}

	stats := pool.GetTotalStats()
	if stats.Pending != 0 || stats.Leased != 0 {
		t.Fatalf("expected capacity to be released after failure, got %+v", stats)
	}

	// Capacity should be available again immediately.
	f2, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	if initiator.len() != 2 {
		t.Fatalf("expected a fresh connect attempt, got %d total", initiator.len())
	}
	c2 := initiator.call(1)
	c2.callback.Completed(c2.handle)
	_ = getEntry(t, f2)
}

// Scenario 6: shutdown during a pending connect cancels it and resolves the
// caller's future exactly once.
func TestShutdownDuringPendingCancelsAndResolvesOnce(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(1, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	if initiator.len() != 1 {
		t.Fatalf("expected a connect attempt to start, got %d", initiator.len())
	}

	pool.Shutdown(0)

	select {
	case <-f1.Done():
	default:
		t.Fatal("expected the future to resolve on shutdown")
	}
	if _, err := f1.Get(context.Background()); !IsCancelled(err) {
		t.Fatalf("expected a cancelled error, got %v", err)
	}

	// Late reactor callbacks on the now-shut-down pool must be no-ops, not
	// panics or double-resolutions.
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	c.callback.Failed(c.handle, errors.New("too late"))

	if !pool.IsShutDown() {
		t.Fatal("pool should report shut down")
	}
	if _, err := pool.Lease("r1", "", false, time.Second, 0, nil); !IsShutDown(err) {
		t.Fatalf("expected ErrShutDown, got %v", err)
	}
}

// Idempotent release: releasing the same entry twice is a no-op.
func TestReleaseIsIdempotent(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(1, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	e1 := getEntry(t, f1)

	pool.Release(e1, true)
	statsBefore := pool.GetTotalStats()
	pool.Release(e1, true)
	statsAfter := pool.GetTotalStats()

	if statsBefore != statsAfter {
		t.Fatalf("second release changed pool state: %+v vs %+v", statsBefore, statsAfter)
	}
}

// FIFO fairness: two feasible waiters are advanced in arrival order.
func TestFIFOFairness(t *testing.T) {
	initiator := newTestInitiator()
	pool := newTestPool(10, 1, initiator, &testFactory{}, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	e1 := getEntry(t, f1)

	f2, _ := pool.Lease("r1", "", false, time.Second, 0, nil) // queues: cap is 1
	f3, _ := pool.Lease("r1", "", false, time.Second, 0, nil) // also queues

	pool.Release(e1, true)

	select {
	case <-f2.Done():
	default:
		t.Fatal("expected the first queued request (f2) to be advanced first")
	}
	select {
	case <-f3.Done():
		t.Fatal("f3 should still be queued: only one unit of capacity freed")
	default:
	}
}

// Connection-factory failure during Completed does not poison the pool: a
// subsequent lease on the same route succeeds normally.
func TestFactoryFailureDoesNotPoisonPool(t *testing.T) {
	initiator := newTestInitiator()
	factory := &testFactory{failErr: errors.New("tls handshake failed")}
	pool := newTestPool(2, 2, initiator, factory, &testResolver{})

	f1, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c := initiator.call(0)
	c.callback.Completed(c.handle)
	if _, err := f1.Get(context.Background()); !IsIO(err) {
		t.Fatalf("expected an IO error from the factory, got %v", err)
	}

	f2, _ := pool.Lease("r1", "", false, time.Second, 0, nil)
	c2 := initiator.call(1)
	c2.callback.Completed(c2.handle)
	e2 := getEntry(t, f2)
	if e2 == nil {
		t.Fatal("expected the pool to still be usable after a factory failure")
	}
}
