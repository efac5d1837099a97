// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package slot

import (
	"github.com/gogama/hostpool/request"
)

// An Event is one asynchronous signal delivered to a slot's state
// machine by the slot runtime: a routing instruction from the pool, a
// connection lifecycle change, progress on the request or response
// entity stream, a state timeout, or pool shutdown.
//
// Events for a single slot are totally ordered by the runtime; the
// machine never sees two events concurrently.
type Event interface {
	// Name returns the event's name for logging.
	Name() string

	isEvent()
}

// PreConnect instructs an unconnected slot to dial a warm connection
// ahead of demand.
type PreConnect struct{}

// NewRequest assigns a request to the slot.
type NewRequest struct {
	Req *request.Context
}

// ConnectionAttemptSucceeded signals that the dial started by
// Context.OpenConnection established a connection. The runtime owns
// the connection handle; the machine only learns that it exists.
type ConnectionAttemptSucceeded struct{}

// ConnectionAttemptFailed signals that the dial failed.
type ConnectionAttemptFailed struct {
	Cause error
}

// RequestEntityCompleted signals that the request head and entity have
// been fully written to the connection.
type RequestEntityCompleted struct{}

// RequestEntityFailed signals a client-side error while streaming the
// request entity.
type RequestEntityFailed struct {
	Cause error
}

// ResponseReceived signals arrival of the response head.
type ResponseReceived struct {
	Response *request.Response
}

// ResponseDispatchable signals that the downstream output port has
// capacity to accept the determined exchange result.
type ResponseDispatchable struct{}

// ResponseEntitySubscribed signals that the receiver subscribed to the
// dispatched response's entity stream.
type ResponseEntitySubscribed struct{}

// ResponseEntityCompleted signals that the response entity stream
// reached a clean end of stream.
type ResponseEntityCompleted struct{}

// ResponseEntityFailed signals a stream error after the response head
// was dispatched.
type ResponseEntityFailed struct {
	Cause error
}

// ConnectionCompleted signals that the established connection was
// closed in an orderly way, for example by the pool's idle or lifetime
// timeout.
type ConnectionCompleted struct{}

// ConnectionFailed signals that the established connection failed.
type ConnectionFailed struct {
	Cause error
}

// Timeout signals expiry of the current state's deadline.
type Timeout struct{}

// Shutdown signals that the pool is closing. Busy states drop their
// request (the pool settles outstanding promises); idle states are
// unaffected.
type Shutdown struct{}

func (PreConnect) Name() string                 { return "preConnect" }
func (NewRequest) Name() string                 { return "newRequest" }
func (ConnectionAttemptSucceeded) Name() string { return "connectionAttemptSucceeded" }
func (ConnectionAttemptFailed) Name() string    { return "connectionAttemptFailed" }
func (RequestEntityCompleted) Name() string     { return "requestEntityCompleted" }
func (RequestEntityFailed) Name() string        { return "requestEntityFailed" }
func (ResponseReceived) Name() string           { return "responseReceived" }
func (ResponseDispatchable) Name() string       { return "responseDispatchable" }
func (ResponseEntitySubscribed) Name() string   { return "responseEntitySubscribed" }
func (ResponseEntityCompleted) Name() string    { return "responseEntityCompleted" }
func (ResponseEntityFailed) Name() string       { return "responseEntityFailed" }
func (ConnectionCompleted) Name() string        { return "connectionCompleted" }
func (ConnectionFailed) Name() string           { return "connectionFailed" }
func (Timeout) Name() string                    { return "timeout" }
func (Shutdown) Name() string                   { return "shutdown" }

func (PreConnect) isEvent()                 {}
func (NewRequest) isEvent()                 {}
func (ConnectionAttemptSucceeded) isEvent() {}
func (ConnectionAttemptFailed) isEvent()    {}
func (RequestEntityCompleted) isEvent()     {}
func (RequestEntityFailed) isEvent()        {}
func (ResponseReceived) isEvent()           {}
func (ResponseDispatchable) isEvent()       {}
func (ResponseEntitySubscribed) isEvent()   {}
func (ResponseEntityCompleted) isEvent()    {}
func (ResponseEntityFailed) isEvent()       {}
func (ConnectionCompleted) isEvent()        {}
func (ConnectionFailed) isEvent()           {}
func (Timeout) isEvent()                    {}
func (Shutdown) isEvent()                   {}
