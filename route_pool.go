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
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// RouteSpecificPool holds one route's leased, available and pending
// bookkeeping. It does no global accounting and takes no locks of its own;
// every method here is called with the owning Pool's lock already held.
type RouteSpecificPool[R comparable, S comparable, C io.Closer] struct {
	route      R
	generation uint64
	leased     map[string]*Entry[R, S, C]
	available  *lru.LRU[string, *Entry[R, S, C]]
	pending    map[string]*LeaseRequest[R, S, C]
}

func newRouteSpecificPool[R comparable, S comparable, C io.Closer](route R) *RouteSpecificPool[R, S, C] {
	// size is effectively unbounded: capacity is enforced by the pool core's
	// excess computation (spec.md §4.3), not by the LRU itself.
	available, _ := lru.NewLRU[string, *Entry[R, S, C]](math.MaxInt32, nil)
	return &RouteSpecificPool[R, S, C]{
		route:     route,
		leased:    make(map[string]*Entry[R, S, C]),
		available: available,
		pending:   make(map[string]*LeaseRequest[R, S, C]),
	}
}

// allocatedCount returns leased(R) + available(R) + pending(R).
func (p *RouteSpecificPool[R, S, C]) allocatedCount() int {
	return len(p.leased) + p.available.Len() + len(p.pending)
}

// bumpGeneration advances this route's generation counter and returns the
// new value. Called once per connect attempt initiated for the route;
// exposed only through structured log fields (connectLocked), not through
// any public accessor -- it is a debugging aid for correlating a route's
// connect attempts across log lines, not part of the pool's contract.
func (p *RouteSpecificPool[R, S, C]) bumpGeneration() uint64 {
	p.generation++
	return p.generation
}

// getFree returns an idle entry matching state, preferring (1) an exact
// state match, then (2) if state is unset, any entry with no stored state.
// Ties break toward the most-recently-released entry. The entry is NOT
// removed from available; the caller does that.
func (p *RouteSpecificPool[R, S, C]) getFree(state S, hasState bool) *Entry[R, S, C] {
	keys := p.available.Keys() // oldest (LRU) first
	var fallback *Entry[R, S, C]
	for i := len(keys) - 1; i >= 0; i-- { // walk most-recently-released first
		e, ok := p.available.Peek(keys[i])
		if !ok {
			continue
		}
		if hasState {
			if e.hasState && e.state == state {
				return e
			}
			continue
		}
		if !e.hasState && fallback == nil {
			fallback = e
		}
	}
	return fallback
}

// getLastUsed returns the least-recently-released idle entry, the eviction
// candidate.
func (p *RouteSpecificPool[R, S, C]) getLastUsed() *Entry[R, S, C] {
	_, e, ok := p.available.GetOldest()
	if !ok {
		return nil
	}
	return e
}

// removeAvailable removes e from this route's available set without
// closing it. No-op if e isn't present.
func (p *RouteSpecificPool[R, S, C]) removeAvailable(e *Entry[R, S, C]) {
	p.available.Remove(e.id)
}

// free moves e from leased to available if reusable; otherwise it is the
// caller's job to close it (RouteSpecificPool never closes on the caller's
// behalf here -- the pool core does, so onRelease/onReuse ordering stays
// observable to it).
func (p *RouteSpecificPool[R, S, C]) free(e *Entry[R, S, C], reusable bool) {
	delete(p.leased, e.id)
	if reusable {
		p.available.Add(e.id, e)
	}
}

// addPending records an outstanding connect under handle, bound to req.
func (p *RouteSpecificPool[R, S, C]) addPending(handle string, req *LeaseRequest[R, S, C]) {
	p.pending[handle] = req
}

// createEntry consumes the pending record for handle and returns a new
// entry for the just-completed connect. Returns nil if handle is unknown
// (e.g. raced with shutdown).
func (p *RouteSpecificPool[R, S, C]) createEntry(handle string, conn C) (*Entry[R, S, C], *LeaseRequest[R, S, C]) {
	req, ok := p.pending[handle]
	if !ok {
		return nil, nil
	}
	delete(p.pending, handle)
	e := newEntry[R, S, C](defaultIDSource.next(), p.route, conn, req.state, req.hasState, time.Now())
	p.leased[e.id] = e
	return e, req
}

// takePending removes and returns the request bound to handle, or nil if
// unknown.
func (p *RouteSpecificPool[R, S, C]) takePending(handle string) *LeaseRequest[R, S, C] {
	req, ok := p.pending[handle]
	if !ok {
		return nil
	}
	delete(p.pending, handle)
	return req
}

// markLeased adds e to this route's leased set (used by the lease path when
// an idle entry is reused).
func (p *RouteSpecificPool[R, S, C]) markLeased(e *Entry[R, S, C]) {
	p.leased[e.id] = e
}

// remove removes e from whichever of leased/available it is currently in.
func (p *RouteSpecificPool[R, S, C]) remove(e *Entry[R, S, C]) {
	delete(p.leased, e.id)
	p.available.Remove(e.id)
}

// shutdown drops all structures and returns the IDs of the outstanding
// pending handles together with their bound requests. It cancels nothing
// itself: the caller (pool core) is responsible for invoking handle.Cancel(),
// resolving each returned request, and closing leased/available entries.
func (p *RouteSpecificPool[R, S, C]) shutdown() ([]string, []*LeaseRequest[R, S, C]) {
	handles := make([]string, 0, len(p.pending))
	reqs := make([]*LeaseRequest[R, S, C], 0, len(p.pending))
	for h, req := range p.pending {
		handles = append(handles, h)
		reqs = append(reqs, req)
	}
	p.pending = make(map[string]*LeaseRequest[R, S, C])
	p.leased = make(map[string]*Entry[R, S, C])
	p.available.Purge()
	return handles, reqs
}
