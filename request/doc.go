// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request provides the value types that travel through a host
connection pool: the logical HTTP request (Request), the per-request
bookkeeping record handed to a pool slot (Context), the one-shot
completion handle the submitter awaits (Promise), and the exchange
outcome types (Result, Response, Entity, ResponseContext).

A Request describes a logical HTTP/1.1 request to the pool's host. It
may be sent more than once, for example when a failed attempt on one
connection is retried on another, so its entity must be replayable for
a retry to be possible: either strict (pre-buffered bytes) or
restartable (a GetBody function that produces a fresh reader).

A Context pairs a Request with a Promise and a retry allowance. The
Context is immutable while owned by a slot; the pool derives a new
Context with WithRetry when it re-enqueues a failed retryable request.

A Response carries the response head plus an Entity. The entity stream
is not consumed eagerly: the receiver must Subscribe to obtain the body
reader, and the pool observes subscription, completion and failure of
the stream to decide when the underlying connection can be reused.
*/
package request
