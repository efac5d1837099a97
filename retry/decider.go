// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"github.com/gogama/hostpool/request"
	"github.com/gogama/hostpool/transient"
)

// A Decider decides if a failed request should be re-enqueued.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in deciders Always, Never, HasAttemptsLeft,
// IdempotentMethod, ReplayableEntity, and TransientErr; or implement
// your own. Use DeciderFunc to convert an ordinary function into a
// Decider, and to compose deciders logically using DeciderFunc.And and
// DeciderFunc.Or.
type Decider interface {
	// Decide returns true if the failed request described by rc should
	// be re-enqueued, given the failure cause.
	Decide(rc *request.Context, cause error) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface,
// and also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(rc *request.Context, cause error) bool

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It re-enqueues a request while it has retries
// left, its method is idempotent, its entity is replayable, and the
// failure cause is transient according to transient.Categorize.
var DefaultDecider = HasAttemptsLeft.And(IdempotentMethod).And(ReplayableEntity).And(TransientErr)

// Always is a decider that permits every retry. Composed with the
// pool's hard eligibility precondition it means "retry whenever it is
// safe to".
var Always DeciderFunc = func(_ *request.Context, _ error) bool { return true }

// Never is a decider that refuses every retry. It is useful if you
// want every failure surfaced to the submitter immediately.
var Never DeciderFunc = func(_ *request.Context, _ error) bool { return false }

// HasAttemptsLeft is a decider that permits a retry while the request
// context has retries left.
var HasAttemptsLeft DeciderFunc = func(rc *request.Context, _ error) bool {
	return rc.RetriesLeft > 0
}

// IdempotentMethod is a decider that permits a retry only for requests
// whose method is idempotent per RFC 7231 §4.2.2.
var IdempotentMethod DeciderFunc = func(rc *request.Context, _ error) bool {
	return rc.Request.IsIdempotent()
}

// ReplayableEntity is a decider that permits a retry only for requests
// whose entity can be sent again from the beginning.
var ReplayableEntity DeciderFunc = func(rc *request.Context, _ error) bool {
	return rc.Request.IsReplayable()
}

// TransientErr is a decider that permits a retry if the failure cause
// is transient according to transient.Categorize.
var TransientErr DeciderFunc = func(_ *request.Context, cause error) bool {
	return transient.Categorize(cause) != transient.Not
}

// Decide returns true if a retry should be done, and false otherwise.
func (f DeciderFunc) Decide(rc *request.Context, cause error) bool {
	return f(rc, cause)
}

// And composes two retry deciders into a new decider which returns
// true if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(rc *request.Context, cause error) bool {
		return f(rc, cause) && g(rc, cause)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(rc *request.Context, cause error) bool {
		return f(rc, cause) || g(rc, cause)
	}
}
