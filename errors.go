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
	"github.com/samber/oops"
)

// Error kinds delivered through a LeaseRequest's future. Every asynchronous
// failure is tagged with one of these codes so callers can type-switch on
// cause without parsing message text.
const (
	codeTimeout   = "timeout"
	codeIO        = "io"
	codeCancelled = "cancelled"
	codeShutDown  = "shutdown"
)

// ErrShutDown is the precondition failure returned synchronously by Lease
// when the pool has already been shut down.
var ErrShutDown = oops.Code(codeShutDown).Errorf("pool is shut down")

func errTimeout(route any) error {
	return oops.Code(codeTimeout).With("route", route).Errorf("lease deadline exceeded")
}

func errConnectTimeout(route any) error {
	return oops.Code(codeTimeout).With("route", route).Errorf("connect timed out")
}

func errIO(route any, cause error) error {
	return oops.Code(codeIO).With("route", route).Wrapf(cause, "connection I/O failure")
}

func errCancelled(route any) error {
	return oops.Code(codeCancelled).With("route", route).Errorf("connect cancelled")
}

// IsTimeout reports whether err is a lease-deadline or connect-timeout
// failure.
func IsTimeout(err error) bool {
	return hasCode(err, codeTimeout)
}

// IsIO reports whether err originated from address resolution, a failed
// connect attempt, or connection construction.
func IsIO(err error) bool {
	return hasCode(err, codeIO)
}

// IsCancelled reports whether err represents an externally or
// reactor-cancelled attempt.
func IsCancelled(err error) bool {
	return hasCode(err, codeCancelled)
}

// IsShutDown reports whether err is the synchronous shut-down precondition
// failure.
func IsShutDown(err error) bool {
	return hasCode(err, codeShutDown)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oe, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oe.Code() == code
}
