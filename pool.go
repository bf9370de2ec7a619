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
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/atomic"
)

// unboundedConnectTimeout is passed to the reactor when a caller requested
// connect_timeout <= 0 ("wait forever") -- spec.md §4.2 treats that as an
// infinite deadline; the reactor's SetConnectTimeout still needs a concrete
// value, so this stands in for "effectively never".
const unboundedConnectTimeout = 100 * 365 * 24 * time.Hour

// Observer receives lifecycle notifications from the pool core. OnRelease,
// and OnReuse/OnLease for a reused entry, fire with the pool lock held;
// OnLease for a freshly connected entry fires just after the lock is
// released. Implementations MUST NOT re-enter Lease/Release -- spec.md §5.
type Observer[R comparable, S comparable, C io.Closer] interface {
	OnLease(e *Entry[R, S, C])
	OnRelease(e *Entry[R, S, C])
	OnReuse(e *Entry[R, S, C])
}

type noopObserver[R comparable, S comparable, C io.Closer] struct{}

func (noopObserver[R, S, C]) OnLease(*Entry[R, S, C])   {}
func (noopObserver[R, S, C]) OnRelease(*Entry[R, S, C]) {}
func (noopObserver[R, S, C]) OnReuse(*Entry[R, S, C])   {}

// Option configures a Pool at construction time.
type Option[R comparable, S comparable, C io.Closer] func(*Pool[R, S, C])

// WithObserver installs lifecycle notifications.
func WithObserver[R comparable, S comparable, C io.Closer](o Observer[R, S, C]) Option[R, S, C] {
	return func(p *Pool[R, S, C]) { p.observer = o }
}

// WithLogger installs a structured logger; the default logs to logrus's
// standard logger.
func WithLogger[R comparable, S comparable, C io.Closer](l Logger) Option[R, S, C] {
	return func(p *Pool[R, S, C]) { p.log = l }
}

// WithClock overrides the pool's notion of "now", for deterministic tests of
// deadline/expiry behavior.
func WithClock[R comparable, S comparable, C io.Closer](clock func() time.Time) Option[R, S, C] {
	return func(p *Pool[R, S, C]) { p.clock = clock }
}

// Pool is the globally coordinated connection pool core: route map, global
// leased set, global LRU-ordered available list, pending connect set,
// waiting-request queue, completed-request queue, and the caps that bound
// them all (spec.md §3).
type Pool[R comparable, S comparable, C io.Closer] struct {
	mu sync.Mutex

	routeToPool map[R]*RouteSpecificPool[R, S, C]
	leased      map[string]*Entry[R, S, C]
	available   *lru.LRU[string, *Entry[R, S, C]]
	pending     map[string]Handle // handle id -> handle, across all routes

	leasingRequests []*LeaseRequest[R, S, C]
	completed       *completionQueue[R, S, C]

	maxPerRoute        map[R]int
	defaultMaxPerRoute int
	maxTotal           int

	isShutDown atomic.Bool

	resolver  AddressResolver[R]
	factory   ConnectionFactory[R, C]
	initiator ConnectionInitiator
	observer  Observer[R, S, C]
	log       Logger
	clock     func() time.Time
}

const maxLRUSize = 1 << 30

// NewPool constructs a pool with the given global and default per-route
// caps. maxTotal and defaultMaxPerRoute must be positive.
func NewPool[R comparable, S comparable, C io.Closer](
	maxTotal, defaultMaxPerRoute int,
	resolver AddressResolver[R],
	factory ConnectionFactory[R, C],
	initiator ConnectionInitiator,
	opts ...Option[R, S, C],
) *Pool[R, S, C] {
	if maxTotal <= 0 || defaultMaxPerRoute <= 0 {
		panic("connpool: maxTotal and defaultMaxPerRoute must be positive")
	}
	available, _ := lru.NewLRU[string, *Entry[R, S, C]](maxLRUSize, nil)
	p := &Pool[R, S, C]{
		routeToPool:        make(map[R]*RouteSpecificPool[R, S, C]),
		leased:             make(map[string]*Entry[R, S, C]),
		available:          available,
		pending:            make(map[string]Handle),
		completed:          newCompletionQueue[R, S, C](),
		maxPerRoute:        make(map[R]int),
		defaultMaxPerRoute: defaultMaxPerRoute,
		maxTotal:           maxTotal,
		resolver:           resolver,
		factory:            factory,
		initiator:          initiator,
		observer:           noopObserver[R, S, C]{},
		log:                defaultLogger(),
		clock:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// routePoolLocked returns (creating if necessary) the RouteSpecificPool for
// route. Callers hold p.mu.
func (p *Pool[R, S, C]) routePoolLocked(route R) *RouteSpecificPool[R, S, C] {
	rp, ok := p.routeToPool[route]
	if !ok {
		rp = newRouteSpecificPool[R, S, C](route)
		p.routeToPool[route] = rp
	}
	return rp
}

// purgeIfEmptyLocked drops route's bookkeeping once nothing references it
// (spec.md §3: "Entries may be purged when allocatedCount == 0").
func (p *Pool[R, S, C]) purgeIfEmptyLocked(route R) {
	if rp, ok := p.routeToPool[route]; ok && rp.allocatedCount() == 0 {
		delete(p.routeToPool, route)
	}
}

func (p *Pool[R, S, C]) getMaxPerRouteLocked(route R) int {
	if n, ok := p.maxPerRoute[route]; ok {
		return n
	}
	return p.defaultMaxPerRoute
}

// Lease requests a connection for route, preferring an idle entry whose
// state matches (if hasState) or has no state (if !hasState). connectTimeout
// <= 0 means wait forever; leaseTimeout, if > 0, becomes the handed-out
// entry's expiry window. callback, if non-nil, is invoked with the terminal
// outcome outside the pool lock, in addition to the returned Future.
func (p *Pool[R, S, C]) Lease(route R, state S, hasState bool, connectTimeout, leaseTimeout time.Duration, callback func(*Entry[R, S, C], error)) (*Future[R, S, C], error) {
	if p.isShutDown.Load() {
		return nil, ErrShutDown
	}

	req := newLeaseRequest[R, S, C](route, state, hasState, connectTimeout, p.clock(), callback)
	req.leaseTimeout = leaseTimeout

	p.mu.Lock()
	advanced := p.processPendingRequest(req)
	if !req.isTerminal() && !advanced {
		p.leasingRequests = append(p.leasingRequests, req)
	} else if req.isTerminal() {
		p.completed.push(req)
	}
	p.mu.Unlock()

	p.completed.fireCallbacks()
	return &Future[R, S, C]{req: req}, nil
}

// processPendingRequest attempts to satisfy req immediately, either by
// reuse or by starting a new connect. It returns true iff req was satisfied
// or newly pending (spec.md §4.3). Callers hold p.mu.
func (p *Pool[R, S, C]) processPendingRequest(req *LeaseRequest[R, S, C]) bool {
	now := p.clock()
	if now.After(req.deadline) {
		req.fail(errTimeout(req.route))
		p.log.WithField("route", req.route).Debug("lease deadline exceeded")
		return false
	}

	rp := p.routePoolLocked(req.route)

	if e := p.reuseLocked(rp, req, now); e != nil {
		req.complete(e)
		p.observer.OnReuse(e)
		p.observer.OnLease(e)
		return true
	}

	return p.connectLocked(rp, req, now)
}

// reuseLocked repeatedly asks rp for a free entry, discarding any that are
// closed or expired, until a usable one is found (or none remain). On
// success the entry has already been moved into the leased sets.
func (p *Pool[R, S, C]) reuseLocked(rp *RouteSpecificPool[R, S, C], req *LeaseRequest[R, S, C], now time.Time) *Entry[R, S, C] {
	for {
		e := rp.getFree(req.state, req.hasState)
		if e == nil {
			return nil
		}
		if e.Closed() || e.Expired(now) {
			rp.removeAvailable(e)
			p.available.Remove(e.id)
			e.close()
			continue
		}
		rp.removeAvailable(e)
		p.available.Remove(e.id)
		rp.markLeased(e)
		p.leased[e.id] = e
		if req.leaseTimeout > 0 {
			e.SetExpiry(now.Add(req.leaseTimeout))
		}
		return e
	}
}

// connectLocked enforces route and global caps by evicting idle entries as
// needed, then initiates a new connect. Returns true iff a connect was
// started.
func (p *Pool[R, S, C]) connectLocked(rp *RouteSpecificPool[R, S, C], req *LeaseRequest[R, S, C], now time.Time) bool {
	perRouteCap := p.getMaxPerRouteLocked(req.route)

	excess := rp.allocatedCount() + 1 - perRouteCap
	for i := 0; i < excess; i++ {
		victim := rp.getLastUsed()
		if victim == nil {
			break
		}
		rp.removeAvailable(victim)
		p.available.Remove(victim.id)
		victim.close()
	}

	if rp.allocatedCount() >= perRouteCap {
		return false
	}

	totalUsed := len(p.pending) + len(p.leased)
	freeCapacity := p.maxTotal - totalUsed
	if freeCapacity < 0 {
		freeCapacity = 0
	}
	if freeCapacity == 0 {
		return false
	}
	if p.available.Len() > freeCapacity-1 && p.available.Len() > 0 {
		_, victim, ok := p.available.RemoveOldest()
		if ok {
			if vrp, exists := p.routeToPool[victim.Route()]; exists {
				vrp.removeAvailable(victim)
				p.purgeIfEmptyLocked(victim.Route())
			}
			victim.close()
		}
	}

	remote, err := p.resolver.ResolveRemote(req.route)
	if err != nil {
		req.fail(errIO(req.route, err))
		return false
	}
	local, err := p.resolver.ResolveLocal(req.route)
	if err != nil {
		req.fail(errIO(req.route, err))
		return false
	}

	cb := &internalConnectCallback[R, S, C]{pool: p, route: req.route}
	handle := p.initiator.Connect(remote, local, req.route, cb)
	timeout := req.connectTimeout
	if timeout <= 0 {
		timeout = unboundedConnectTimeout
	}
	handle.SetConnectTimeout(timeout)

	p.pending[handle.ID()] = handle
	rp.addPending(handle.ID(), req)
	generation := rp.bumpGeneration()
	p.log.WithField("route", req.route).WithField("handle", handle.ID()).WithField("generation", generation).Debug("connect started")
	return true
}

// processNextPendingRequest scans leasingRequests in FIFO order and stops
// at the first request that was satisfied or made newly pending -- one unit
// of freed capacity yields at most one new assignment (spec.md §4.5).
// Callers hold p.mu.
func (p *Pool[R, S, C]) processNextPendingRequest() {
	kept := p.leasingRequests[:0]
	stopped := false
	for _, req := range p.leasingRequests {
		if stopped {
			kept = append(kept, req)
			continue
		}
		advanced := p.processPendingRequest(req)
		if req.isTerminal() {
			p.completed.push(req)
			if advanced {
				stopped = true
			}
			continue
		}
		if advanced {
			stopped = true
			continue
		}
		kept = append(kept, req)
	}
	p.leasingRequests = kept
}

// processPendingRequests performs the same scan as processNextPendingRequest
// but does not stop at the first advance -- used after bulk changes like an
// eviction sweep (spec.md §4.5). Callers hold p.mu.
func (p *Pool[R, S, C]) processPendingRequests() {
	kept := p.leasingRequests[:0]
	for _, req := range p.leasingRequests {
		advanced := p.processPendingRequest(req)
		if req.isTerminal() {
			p.completed.push(req)
			continue
		}
		if advanced {
			continue
		}
		kept = append(kept, req)
	}
	p.leasingRequests = kept
}

// ValidatePendingRequests marks as failed (Timeout) any waiting request
// whose deadline has passed, without otherwise disturbing the queue
// (spec.md §4.5).
func (p *Pool[R, S, C]) ValidatePendingRequests() {
	p.mu.Lock()
	now := p.clock()
	kept := p.leasingRequests[:0]
	for _, req := range p.leasingRequests {
		if req.expired(now) {
			req.fail(errTimeout(req.route))
			p.completed.push(req)
			continue
		}
		kept = append(kept, req)
	}
	p.leasingRequests = kept
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// Release returns e to the pool. If reusable, e becomes available for
// future leases; otherwise it is closed. A nil e, a second release of the
// same entry, or a release after shutdown is a no-op.
func (p *Pool[R, S, C]) Release(e *Entry[R, S, C], reusable bool) {
	if e == nil || p.isShutDown.Load() {
		return
	}

	p.mu.Lock()
	if _, ok := p.leased[e.id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leased, e.id)

	rp := p.routePoolLocked(e.Route())
	rp.free(e, reusable)

	if reusable {
		e.touch(p.clock())
		p.available.Add(e.id, e)
		p.observer.OnRelease(e)
	} else {
		e.close()
		p.purgeIfEmptyLocked(e.Route())
	}

	p.processNextPendingRequest()
	p.mu.Unlock()

	p.completed.fireCallbacks()
}

// onConnectCompleted handles a reactor Completed callback (spec.md §4.6).
func (p *Pool[R, S, C]) onConnectCompleted(route R, h Handle) {
	if p.isShutDown.Load() {
		return
	}
	p.mu.Lock()
	delete(p.pending, h.ID())
	rp, ok := p.routeToPool[route]
	if !ok {
		p.mu.Unlock()
		return
	}

	session := h.Session()
	conn, err := p.factory.Create(route, session)
	if err != nil {
		req := rp.takePending(h.ID())
		p.purgeIfEmptyLocked(route)
		if req != nil {
			req.fail(errIO(route, err))
			p.completed.push(req)
		}
		p.mu.Unlock()
		p.completed.fireCallbacks()
		return
	}

	e, req := rp.createEntry(h.ID(), conn)
	if e == nil {
		// Pending record vanished (raced with shutdown): close what we just
		// built and walk away.
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	p.leased[e.id] = e
	if req.leaseTimeout > 0 {
		e.SetExpiry(p.clock().Add(req.leaseTimeout))
	}
	req.complete(e)
	p.completed.push(req)
	p.mu.Unlock()

	p.observer.OnLease(e)
	p.completed.fireCallbacks()
}

// onConnectCancelled handles a reactor Cancelled callback.
func (p *Pool[R, S, C]) onConnectCancelled(route R, h Handle) {
	if p.isShutDown.Load() {
		return
	}
	p.mu.Lock()
	delete(p.pending, h.ID())
	if rp, ok := p.routeToPool[route]; ok {
		if req := rp.takePending(h.ID()); req != nil {
			req.cancel()
			p.completed.push(req)
		}
		p.purgeIfEmptyLocked(route)
	}
	if p.initiator.Status() <= ReactorActive {
		p.processNextPendingRequest()
	}
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// onConnectFailed handles a reactor Failed callback.
func (p *Pool[R, S, C]) onConnectFailed(route R, h Handle, err error) {
	if p.isShutDown.Load() {
		return
	}
	p.mu.Lock()
	delete(p.pending, h.ID())
	if rp, ok := p.routeToPool[route]; ok {
		if req := rp.takePending(h.ID()); req != nil {
			req.fail(errIO(route, err))
			p.completed.push(req)
		}
		p.purgeIfEmptyLocked(route)
	}
	p.processNextPendingRequest()
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// onConnectTimeout handles a reactor Timeout callback.
func (p *Pool[R, S, C]) onConnectTimeout(route R, h Handle) {
	if p.isShutDown.Load() {
		return
	}
	p.mu.Lock()
	delete(p.pending, h.ID())
	if rp, ok := p.routeToPool[route]; ok {
		if req := rp.takePending(h.ID()); req != nil {
			req.fail(errConnectTimeout(route))
			p.completed.push(req)
		}
		p.purgeIfEmptyLocked(route)
	}
	p.processNextPendingRequest()
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// SetMaxTotal changes the global capacity. Reductions are not proactively
// enforced; oversubscription is reconciled lazily on the next lease per
// route (spec.md §4.7).
func (p *Pool[R, S, C]) SetMaxTotal(n int) {
	if n <= 0 {
		panic("connpool: maxTotal must be positive")
	}
	p.mu.Lock()
	p.maxTotal = n
	p.mu.Unlock()
}

// GetMaxTotal returns the current global capacity.
func (p *Pool[R, S, C]) GetMaxTotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxTotal
}

// SetDefaultMaxPerRoute changes the fallback per-route cap used by routes
// with no explicit override.
func (p *Pool[R, S, C]) SetDefaultMaxPerRoute(n int) {
	if n <= 0 {
		panic("connpool: defaultMaxPerRoute must be positive")
	}
	p.mu.Lock()
	p.defaultMaxPerRoute = n
	p.mu.Unlock()
}

// GetDefaultMaxPerRoute returns the current fallback per-route cap.
func (p *Pool[R, S, C]) GetDefaultMaxPerRoute() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultMaxPerRoute
}

// SetMaxPerRoute overrides the cap for one route.
func (p *Pool[R, S, C]) SetMaxPerRoute(route R, n int) {
	if n <= 0 {
		panic("connpool: maxPerRoute must be positive")
	}
	p.mu.Lock()
	p.maxPerRoute[route] = n
	p.mu.Unlock()
}

// GetMaxPerRoute returns route's override if set, else the default.
func (p *Pool[R, S, C]) GetMaxPerRoute(route R) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getMaxPerRouteLocked(route)
}

// TotalStats summarizes global pool occupancy (spec.md §4.9).
type TotalStats struct {
	Leased    int
	Pending   int
	Available int
	MaxTotal  int
}

// GetTotalStats returns the global occupancy snapshot.
func (p *Pool[R, S, C]) GetTotalStats() TotalStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return TotalStats{
		Leased:    len(p.leased),
		Pending:   len(p.pending),
		Available: p.available.Len(),
		MaxTotal:  p.maxTotal,
	}
}

// RouteStats summarizes one route's occupancy.
type RouteStats struct {
	Leased      int
	Pending     int
	Available   int
	MaxPerRoute int
}

// GetStats returns route's occupancy snapshot.
func (p *Pool[R, S, C]) GetStats(route R) RouteStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	rp, ok := p.routeToPool[route]
	if !ok {
		return RouteStats{MaxPerRoute: p.getMaxPerRouteLocked(route)}
	}
	return RouteStats{
		Leased:      len(rp.leased),
		Pending:     len(rp.pending),
		Available:   rp.available.Len(),
		MaxPerRoute: p.getMaxPerRouteLocked(route),
	}
}

// GetRoutes returns a snapshot of every route the pool currently knows
// about.
func (p *Pool[R, S, C]) GetRoutes() []R {
	p.mu.Lock()
	defer p.mu.Unlock()
	routes := make([]R, 0, len(p.routeToPool))
	for r := range p.routeToPool {
		routes = append(routes, r)
	}
	return routes
}

// EnumAvailable invokes cb on every available entry under the lock. If cb
// closes an entry, it is removed from available bookkeeping and the waiting
// queue is re-scanned once enumeration completes (spec.md §4.9).
func (p *Pool[R, S, C]) EnumAvailable(cb func(*Entry[R, S, C])) {
	p.mu.Lock()
	var closed []*Entry[R, S, C]
	for _, key := range p.available.Keys() {
		e, ok := p.available.Peek(key)
		if !ok {
			continue
		}
		cb(e)
		if e.Closed() {
			closed = append(closed, e)
		}
	}
	for _, e := range closed {
		p.available.Remove(e.id)
		if rp, ok := p.routeToPool[e.Route()]; ok {
			rp.removeAvailable(e)
		}
	}
	p.processPendingRequests()
	for r, rp := range p.routeToPool {
		if rp.allocatedCount() == 0 {
			delete(p.routeToPool, r)
		}
	}
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// EnumLeased invokes cb on every leased entry under the lock.
func (p *Pool[R, S, C]) EnumLeased(cb func(*Entry[R, S, C])) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.leased {
		cb(e)
	}
}

// CloseIdle closes every available entry last released at or before
// now - max(0, idleTime).
func (p *Pool[R, S, C]) CloseIdle(idleTime time.Duration) {
	if idleTime < 0 {
		idleTime = 0
	}
	deadline := p.clock().Add(-idleTime)
	p.mu.Lock()
	var closed []*Entry[R, S, C]
	for _, key := range p.available.Keys() {
		e, ok := p.available.Peek(key)
		if ok && !e.UpdatedAt().After(deadline) {
			closed = append(closed, e)
		}
	}
	p.evictLocked(closed)
	p.processPendingRequests()
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

// CloseExpired closes every available entry whose expiry predicate fires
// now.
func (p *Pool[R, S, C]) CloseExpired() {
	now := p.clock()
	p.mu.Lock()
	var closed []*Entry[R, S, C]
	for _, key := range p.available.Keys() {
		e, ok := p.available.Peek(key)
		if ok && e.Expired(now) {
			closed = append(closed, e)
		}
	}
	p.evictLocked(closed)
	p.processPendingRequests()
	p.mu.Unlock()
	p.completed.fireCallbacks()
}

func (p *Pool[R, S, C]) evictLocked(entries []*Entry[R, S, C]) {
	for _, e := range entries {
		p.available.Remove(e.id)
		if rp, ok := p.routeToPool[e.Route()]; ok {
			rp.removeAvailable(e)
			p.purgeIfEmptyLocked(e.Route())
		}
		e.close()
	}
}

// Shutdown atomically marks the pool shut down (a no-op if already shut
// down), drains any callbacks already queued, cancels every outstanding
// connect, closes every leased and available entry, and finally shuts down
// the reactor (spec.md §4.8).
func (p *Pool[R, S, C]) Shutdown(deadline time.Duration) {
	if !p.isShutDown.CompareAndSwap(false, true) {
		return
	}

	p.completed.fireCallbacks()

	p.mu.Lock()
	handles := make([]Handle, 0, len(p.pending))
	for _, h := range p.pending {
		handles = append(handles, h)
	}
	for _, e := range p.leased {
		e.close()
	}
	for _, key := range p.available.Keys() {
		if e, ok := p.available.Peek(key); ok {
			e.close()
		}
	}
	pendingReqs := make([]*LeaseRequest[R, S, C], 0, len(p.leasingRequests))
	for _, req := range p.leasingRequests {
		req.cancel()
		pendingReqs = append(pendingReqs, req)
	}
	for _, rp := range p.routeToPool {
		_, inFlight := rp.shutdown()
		for _, req := range inFlight {
			req.cancel()
			pendingReqs = append(pendingReqs, req)
		}
	}
	p.routeToPool = make(map[R]*RouteSpecificPool[R, S, C])
	p.leased = make(map[string]*Entry[R, S, C])
	p.available.Purge()
	p.pending = make(map[string]Handle)
	p.leasingRequests = nil
	p.mu.Unlock()

	for _, req := range pendingReqs {
		req.fire()
	}
	for _, h := range handles {
		h.Cancel()
	}

	p.initiator.Shutdown(deadline)
}

// IsShutDown reports whether Shutdown has been invoked. Monotone: once
// true, never false again.
func (p *Pool[R, S, C]) IsShutDown() bool {
	return p.isShutDown.Load()
}
