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
	"testing"
	"time"
)

func TestLeaseRequestNoDeadlineWhenConnectTimeoutNonPositive(t *testing.T) {
	now := time.Now()
	req := newLeaseRequest[string, string, *testConn]("r1", "", false, 0, now, nil)
	if req.deadline != noDeadline {
		t.Fatalf("expected connect_timeout <= 0 to mean an unbounded deadline, got %v", req.deadline)
	}
	if req.expired(now.Add(100 * 365 * 24 * time.Hour)) {
		t.Fatalf("an unbounded deadline must never expire")
	}
}

func TestLeaseRequestDeadlineFromConnectTimeout(t *testing.T) {
	now := time.Now()
	req := newLeaseRequest[string, string, *testConn]("r1", "", false, 10*time.Millisecond, now, nil)
	if req.expired(now.Add(5 * time.Millisecond)) {
		t.Fatalf("request should not be expired before its deadline")
	}
	if !req.expired(now.Add(11 * time.Millisecond)) {
		t.Fatalf("request should be expired past its deadline")
	}
}

func TestLeaseRequestTerminalTransitionsAreSticky(t *testing.T) {
	req := newLeaseRequest[string, string, *testConn]("r1", "", false, time.Second, time.Now(), nil)
	if req.isTerminal() {
		t.Fatalf("a fresh request must not be terminal")
	}

	req.fail(errors.New("boom"))
	if !req.isTerminal() {
		t.Fatalf("expected fail to mark the request terminal")
	}

	e := &Entry[string, string, *testConn]{}
	req.complete(e) // must be ignored: already terminal
	if req.result != nil {
		t.Fatalf("a second terminal transition must be a no-op")
	}
	req.cancel() // also ignored
	if req.err == nil || req.err.Error() != "boom" {
		t.Fatalf("the first terminal outcome (fail) must stick, got err=%v result=%v", req.err, req.result)
	}
}

func TestLeaseRequestFireDeliversToCallbackAndFuture(t *testing.T) {
	type callbackArgs struct {
		e   *Entry[string, string, *testConn]
		err error
	}
	got := make(chan callbackArgs, 1)

	req := newLeaseRequest[string, string, *testConn]("r1", "", false, time.Second, time.Now(),
		func(e *Entry[string, string, *testConn], err error) {
			got <- callbackArgs{e, err}
		})

	e := &Entry[string, string, *testConn]{id: "e1"}
	req.complete(e)
	req.fire()

	args := <-got
	if args.e != e || args.err != nil {
		t.Fatalf("expected the callback to observe the completed entry with no error, got %+v", args)
	}

	future := &Future[string, string, *testConn]{req: req}
	resolved, err := future.Get(context.Background())
	if resolved != e || err != nil {
		t.Fatalf("expected the future to resolve to the same entry, got %v, %v", resolved, err)
	}
}

func TestLeaseRequestCancelledErrorValue(t *testing.T) {
	req := newLeaseRequest[string, string, *testConn]("r1", "", false, time.Second, time.Now(), nil)
	req.cancel()
	if !IsCancelled(req.errorValue()) {
		t.Fatalf("expected a cancelled request's error value to report IsCancelled")
	}
}

func TestFutureGetRespectsContextCancellation(t *testing.T) {
	req := newLeaseRequest[string, string, *testConn]("r1", "", false, time.Second, time.Now(), nil)
	future := &Future[string, string, *testConn]{req: req}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := future.Get(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Get to surface context cancellation, got %v", err)
	}
}
