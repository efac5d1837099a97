// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package slot

import (
	"time"

	"go.uber.org/zap"

	"github.com/gogama/hostpool/request"
)

// A Context is the slot runtime as seen by the state machine: the set
// of side effects a transition may request and the queries it may ask.
//
// The machine holds no reference to the runtime between events; the
// runtime passes itself as the Context parameter on every Apply call,
// so there is no cyclic ownership between state values and the
// runtime.
type Context interface {
	// OpenConnection starts a connection attempt. The outcome is
	// delivered later as a ConnectionAttemptSucceeded or
	// ConnectionAttemptFailed event. The machine only requests this
	// from Unconnected, so the runtime never dials while it already
	// owns a connection.
	OpenConnection()

	// PushRequest hands the request, head and entity, to the
	// established connection and returns next, the state the machine
	// transitions to once the push is underway. Entity progress is
	// delivered later as RequestEntityCompleted or
	// RequestEntityFailed events.
	PushRequest(rc *request.Context, next State) State

	// DispatchResult reports the exchange result upstream. For a
	// failed retryable request, the pool decides whether to
	// re-enqueue; otherwise the result settles the request's promise
	// and joins the pool's output stream.
	DispatchResult(rc *request.Context, res request.Result)

	// IsConnectionClosed reports whether the slot's connection has
	// been closed or marked broken.
	IsConnectionClosed() bool

	// WillCloseAfter reports whether the connection must be closed
	// after delivering resp, per HTTP/1.1 connection semantics.
	WillCloseAfter(resp *request.Response) bool

	// SubscriptionTimeout returns the configured window within which
	// a dispatched response's entity must be subscribed.
	SubscriptionTimeout() time.Duration

	// Log returns the slot's logger.
	Log() *zap.SugaredLogger
}
