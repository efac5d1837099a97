// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"sync"
)

// A Context pairs a Request with the one-shot Promise its submitter
// awaits and the number of retries the request has left.
//
// A Context is owned by at most one pool slot at a time. While owned
// by a slot it is treated as immutable; when a failed retryable
// request is returned to the pool for re-enqueueing, the pool derives
// a successor with WithRetry rather than mutating the record in place.
// The Promise is shared across the whole retry chain, so it is settled
// exactly once over the lifetime of the logical request.
type Context struct {
	// Request is the logical HTTP request. It is never nil.
	Request *Request

	// RetriesLeft is the number of times the request may still be
	// re-enqueued after a failed attempt. It is always >= 0.
	RetriesLeft int

	// Attempt is the zero-based number of the current attempt. It is
	// zero for the initial attempt, one for the first retry, and so
	// on.
	Attempt int

	promise *Promise
}

// NewContext returns a request context for req allowing up to retries
// re-enqueues after failed attempts. It panics if req is nil or
// retries is negative.
func NewContext(req *Request, retries int) *Context {
	if req == nil {
		panic("hostpool/request: nil request")
	}
	if retries < 0 {
		panic("hostpool/request: negative retries")
	}
	return &Context{
		Request:     req,
		RetriesLeft: retries,
		promise:     newPromise(),
	}
}

// Promise returns the completion handle the submitter awaits. The
// promise is settled exactly once, with the final result of the
// logical request.
func (c *Context) Promise() *Promise {
	return c.promise
}

// CanBeRetried reports whether this request may be re-sent after a
// failed attempt: it has retries left, its method is idempotent, and
// its entity is replayable.
//
// CanBeRetried is a necessary condition for re-enqueueing; the pool's
// retry decider may veto a retry that CanBeRetried permits, for
// example because the failure cause is not transient.
func (c *Context) CanBeRetried() bool {
	return c.RetriesLeft > 0 && c.Request.IsIdempotent() && c.Request.IsReplayable()
}

// WithRetry returns the successor context for the next attempt: one
// retry fewer, attempt number one higher, same request and same
// promise. It panics if no retries are left.
func (c *Context) WithRetry() *Context {
	if c.RetriesLeft <= 0 {
		panic("hostpool/request: no retries left")
	}
	return &Context{
		Request:     c.Request,
		RetriesLeft: c.RetriesLeft - 1,
		Attempt:     c.Attempt + 1,
		promise:     c.promise,
	}
}

// Settle settles the request's promise with the given result. It
// returns true if this call settled the promise, and false if the
// promise had already been settled.
func (c *Context) Settle(r Result) bool {
	return c.promise.Settle(r)
}

// A Promise is a one-shot completion handle. It starts pending and is
// settled exactly once with a Result; further settles are ignored.
//
// A Promise is safe for concurrent use by multiple goroutines.
type Promise struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Settle resolves the promise with r. It returns true if this call
// settled the promise, and false if the promise had already been
// settled (in which case r is discarded).
func (p *Promise) Settle(r Result) bool {
	settled := false
	p.once.Do(func() {
		p.result = r
		settled = true
		close(p.done)
	})
	return settled
}

// Done returns a channel that is closed when the promise is settled.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled result. The second return value is false
// while the promise is still pending.
func (p *Promise) Result() (Result, bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return Result{}, false
	}
}

// Await blocks until the promise is settled or ctx is done. If ctx
// ends first, the zero Result and the context's error are returned;
// the promise itself remains pending from the caller's point of view
// and may still be settled later.
func (p *Promise) Await(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
