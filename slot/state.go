// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package slot

import (
	"time"

	"github.com/gogama/hostpool/request"
)

// A State is one phase of a slot's lifecycle. Each state variant
// carries exactly the data needed to resume: the in-flight request
// context, the determined result or response, and whether the request
// entity stream is still pending.
//
// States answer three questions the slot runtime and the pool router
// need: whether the slot has (or is establishing) a connection,
// whether it can accept a new request, and whether the state carries
// a deadline the runtime must arm a timer for.
type State interface {
	// Name returns the state's name for logging.
	Name() string

	// IsConnected reports whether the slot has an established or
	// in-flight connection attempt.
	IsConnected() bool

	// IsIdle reports whether the slot holds no request and can accept
	// a new one.
	IsIdle() bool

	// Deadline returns the state's timeout, or zero if the state has
	// none. The slot runtime arms a timer on state entry and cancels
	// it on state exit; expiry delivers a Timeout event.
	Deadline() time.Duration

	isState()
}

// Unconnected is the initial state: no socket, no request, no owned
// resources.
type Unconnected struct{}

// PreConnecting is dialing a warm connection with no request attached.
// A request arriving mid-dial latches onto the attempt (Connecting).
type PreConnecting struct{}

// Connecting is dialing a connection to serve a specific request.
type Connecting struct {
	Req *request.Context
}

// Idle has an open connection and no request.
type Idle struct{}

// WaitingForResponse has sent (or is sending) the request and awaits
// the response head.
type WaitingForResponse struct {
	Req *request.Context

	// ReqEntityPending is true while the request entity stream has not
	// yet signalled completion or failure.
	ReqEntityPending bool
}

// WaitingForResponseDispatch has determined the exchange result,
// response head or failure, and waits for the downstream output port
// to be ready to accept it.
type WaitingForResponseDispatch struct {
	Req              *request.Context
	Result           request.Result
	ReqEntityPending bool
}

// WaitingForResponseEntitySubscription has dispatched the response and
// waits for the receiver to subscribe to its entity stream. The state
// carries the subscription timeout; if it expires the connection is
// force-closed.
type WaitingForResponseEntitySubscription struct {
	Req                 *request.Context
	Response            *request.Response
	SubscriptionTimeout time.Duration
	ReqEntityPending    bool
}

// WaitingForEndOfResponseEntity has a subscribed response entity being
// consumed by the receiver.
type WaitingForEndOfResponseEntity struct {
	Req              *request.Context
	Response         *request.Response
	ReqEntityPending bool
}

// WaitingForEndOfRequestEntity waits for the request entity stream to
// finish after the slot is done with the exchange: either the response
// has fully finished, or a retryable request was handed back to the
// pool while its entity was still streaming.
type WaitingForEndOfRequestEntity struct{}

func (Unconnected) Name() string                          { return "Unconnected" }
func (PreConnecting) Name() string                        { return "PreConnecting" }
func (Connecting) Name() string                           { return "Connecting" }
func (Idle) Name() string                                 { return "Idle" }
func (WaitingForResponse) Name() string                   { return "WaitingForResponse" }
func (WaitingForResponseDispatch) Name() string           { return "WaitingForResponseDispatch" }
func (WaitingForResponseEntitySubscription) Name() string { return "WaitingForResponseEntitySubscription" }
func (WaitingForEndOfResponseEntity) Name() string        { return "WaitingForEndOfResponseEntity" }
func (WaitingForEndOfRequestEntity) Name() string         { return "WaitingForEndOfRequestEntity" }

func (Unconnected) IsConnected() bool                          { return false }
func (PreConnecting) IsConnected() bool                        { return true }
func (Connecting) IsConnected() bool                           { return true }
func (Idle) IsConnected() bool                                 { return true }
func (WaitingForResponse) IsConnected() bool                   { return true }
func (WaitingForResponseDispatch) IsConnected() bool           { return true }
func (WaitingForResponseEntitySubscription) IsConnected() bool { return true }
func (WaitingForEndOfResponseEntity) IsConnected() bool        { return true }
func (WaitingForEndOfRequestEntity) IsConnected() bool         { return true }

func (Unconnected) IsIdle() bool                          { return true }
func (PreConnecting) IsIdle() bool                        { return true }
func (Connecting) IsIdle() bool                           { return false }
func (Idle) IsIdle() bool                                 { return true }
func (WaitingForResponse) IsIdle() bool                   { return false }
func (WaitingForResponseDispatch) IsIdle() bool           { return false }
func (WaitingForResponseEntitySubscription) IsIdle() bool { return false }
func (WaitingForEndOfResponseEntity) IsIdle() bool        { return false }
func (WaitingForEndOfRequestEntity) IsIdle() bool         { return false }

func (Unconnected) Deadline() time.Duration                { return 0 }
func (PreConnecting) Deadline() time.Duration              { return 0 }
func (Connecting) Deadline() time.Duration                 { return 0 }
func (Idle) Deadline() time.Duration                       { return 0 }
func (WaitingForResponse) Deadline() time.Duration         { return 0 }
func (WaitingForResponseDispatch) Deadline() time.Duration { return 0 }
func (s WaitingForResponseEntitySubscription) Deadline() time.Duration {
	return s.SubscriptionTimeout
}
func (WaitingForEndOfResponseEntity) Deadline() time.Duration { return 0 }
func (WaitingForEndOfRequestEntity) Deadline() time.Duration  { return 0 }

func (Unconnected) isState()                          {}
func (PreConnecting) isState()                        {}
func (Connecting) isState()                           {}
func (Idle) isState()                                 {}
func (WaitingForResponse) isState()                   {}
func (WaitingForResponseDispatch) isState()           {}
func (WaitingForResponseEntitySubscription) isState() {}
func (WaitingForEndOfResponseEntity) isState()        {}
func (WaitingForEndOfRequestEntity) isState()         {}
