// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package slot

import (
	"fmt"
	"io"

	"github.com/gogama/hostpool/request"
)

// ErrUnexpectedConnectionClose is the failure cause recorded when an
// orderly connection close arrives while the slot still awaits the
// response. It wraps io.ErrUnexpectedEOF, so transient.Categorize
// classifies it as a retryable early close.
var ErrUnexpectedConnectionClose = fmt.Errorf(
	"hostpool/slot: connection closed before response was received: %w", io.ErrUnexpectedEOF)

// An IllegalEventError reports delivery of an event that is not legal
// in the slot's current state. It indicates a bug in the slot runtime
// or in a connection implementation, not a recoverable I/O condition;
// the runtime responds by tearing the slot down.
type IllegalEventError struct {
	State State
	Event Event
}

func (e *IllegalEventError) Error() string {
	return fmt.Sprintf("hostpool/slot: illegal event %s in state %s", e.Event.Name(), e.State.Name())
}

// Apply is the slot state machine: given the current state, one event,
// and the runtime context, it requests any side effects from ctx and
// returns the next state.
//
// Apply is pure apart from the effects it requests through ctx: it
// performs no I/O, reads no clocks, and never blocks. Events must be
// delivered one at a time per slot.
//
// An event that is not legal in the current state yields a nil state
// and an *IllegalEventError.
func Apply(s State, ev Event, ctx Context) (State, error) {
	if _, ok := ev.(Shutdown); ok {
		return applyShutdown(s, ctx), nil
	}

	switch st := s.(type) {
	case Unconnected:
		switch e := ev.(type) {
		case PreConnect:
			ctx.OpenConnection()
			return PreConnecting{}, nil
		case NewRequest:
			ctx.OpenConnection()
			return Connecting{Req: e.Req}, nil
		}

	case PreConnecting:
		switch e := ev.(type) {
		case ConnectionAttemptSucceeded:
			return Idle{}, nil
		case NewRequest:
			// Dial already in flight; the request latches on.
			return Connecting{Req: e.Req}, nil
		case ConnectionAttemptFailed:
			ctx.Log().Debugw("pre-connect attempt failed", "cause", e.Cause)
			return Unconnected{}, nil
		case ConnectionFailed:
			return Unconnected{}, nil
		case ConnectionCompleted:
			return Unconnected{}, nil
		}

	case Connecting:
		switch e := ev.(type) {
		case ConnectionAttemptSucceeded:
			return ctx.PushRequest(st.Req, WaitingForResponse{Req: st.Req, ReqEntityPending: true}), nil
		case ConnectionAttemptFailed:
			return failOngoingRequest(ctx, st.Req, false, e.Cause), nil
		case RequestEntityFailed:
			return failOngoingRequest(ctx, st.Req, false, e.Cause), nil
		case ConnectionFailed:
			return failOngoingRequest(ctx, st.Req, false, e.Cause), nil
		case ConnectionCompleted:
			return failOngoingRequest(ctx, st.Req, false, ErrUnexpectedConnectionClose), nil
		}

	case Idle:
		switch e := ev.(type) {
		case NewRequest:
			return ctx.PushRequest(e.Req, WaitingForResponse{Req: e.Req, ReqEntityPending: true}), nil
		case ConnectionCompleted:
			return Unconnected{}, nil
		case ConnectionFailed:
			ctx.Log().Debugw("idle connection failed", "cause", e.Cause)
			return Unconnected{}, nil
		}

	case WaitingForResponse:
		switch e := ev.(type) {
		case RequestEntityCompleted:
			if !st.ReqEntityPending {
				break
			}
			return WaitingForResponse{Req: st.Req, ReqEntityPending: false}, nil
		case ResponseReceived:
			return WaitingForResponseDispatch{
				Req:              st.Req,
				Result:           request.Success(e.Response),
				ReqEntityPending: st.ReqEntityPending,
			}, nil
		case ConnectionAttemptFailed:
			return failOngoingRequest(ctx, st.Req, st.ReqEntityPending, e.Cause), nil
		case RequestEntityFailed:
			// The failure terminated the entity stream; there is no
			// end-of-entity left to wait for.
			return failOngoingRequest(ctx, st.Req, false, e.Cause), nil
		case ConnectionFailed:
			return failOngoingRequest(ctx, st.Req, st.ReqEntityPending, e.Cause), nil
		case ConnectionCompleted:
			return failOngoingRequest(ctx, st.Req, st.ReqEntityPending, ErrUnexpectedConnectionClose), nil
		}

	case WaitingForResponseDispatch:
		switch e := ev.(type) {
		case RequestEntityCompleted:
			if !st.ReqEntityPending {
				break
			}
			return WaitingForResponseDispatch{Req: st.Req, Result: st.Result, ReqEntityPending: false}, nil
		case RequestEntityFailed:
			if !st.ReqEntityPending {
				break
			}
			// Result already determined; the broken request stream only
			// means the connection cannot be reused.
			ctx.Log().Debugw("request entity failed after result was determined", "cause", e.Cause)
			return WaitingForResponseDispatch{Req: st.Req, Result: st.Result, ReqEntityPending: false}, nil
		case ResponseDispatchable:
			ctx.DispatchResult(st.Req, st.Result)
			if st.Result.IsSuccess() {
				return WaitingForResponseEntitySubscription{
					Req:                 st.Req,
					Response:            st.Result.Response,
					SubscriptionTimeout: ctx.SubscriptionTimeout(),
					ReqEntityPending:    st.ReqEntityPending,
				}, nil
			}
			return Unconnected{}, nil
		case ConnectionAttemptFailed, ConnectionFailed, ConnectionCompleted:
			return ignoreConnectionEvent(ctx, st, ev), nil
		}

	case WaitingForResponseEntitySubscription:
		switch e := ev.(type) {
		case RequestEntityCompleted:
			if !st.ReqEntityPending {
				break
			}
			st.ReqEntityPending = false
			return st, nil
		case RequestEntityFailed:
			if !st.ReqEntityPending {
				break
			}
			ctx.Log().Debugw("request entity failed after response was dispatched", "cause", e.Cause)
			st.ReqEntityPending = false
			return st, nil
		case ResponseEntitySubscribed:
			return WaitingForEndOfResponseEntity{
				Req:              st.Req,
				Response:         st.Response,
				ReqEntityPending: st.ReqEntityPending,
			}, nil
		case Timeout:
			ctx.Log().Warnw("response entity was not subscribed within the configured window, closing connection",
				"method", st.Req.Request.Method,
				"url", st.Req.Request.URL.String(),
				"status", st.Response.StatusCode,
				"timeout", st.SubscriptionTimeout)
			return Unconnected{}, nil
		case ConnectionAttemptFailed, ConnectionFailed, ConnectionCompleted:
			return ignoreConnectionEvent(ctx, st, ev), nil
		}

	case WaitingForEndOfResponseEntity:
		switch e := ev.(type) {
		case RequestEntityCompleted:
			if !st.ReqEntityPending {
				break
			}
			st.ReqEntityPending = false
			return st, nil
		case RequestEntityFailed:
			if !st.ReqEntityPending {
				break
			}
			ctx.Log().Debugw("request entity failed after response was dispatched", "cause", e.Cause)
			st.ReqEntityPending = false
			return st, nil
		case ResponseEntityCompleted:
			if st.ReqEntityPending {
				return WaitingForEndOfRequestEntity{}, nil
			}
			if ctx.WillCloseAfter(st.Response) || ctx.IsConnectionClosed() {
				return Unconnected{}, nil
			}
			return Idle{}, nil
		case ResponseEntityFailed:
			ctx.Log().Debugw("response entity failed, closing connection", "cause", e.Cause)
			return Unconnected{}, nil
		case ConnectionAttemptFailed, ConnectionFailed, ConnectionCompleted:
			return ignoreConnectionEvent(ctx, st, ev), nil
		}

	case WaitingForEndOfRequestEntity:
		switch ev.(type) {
		case RequestEntityCompleted, RequestEntityFailed:
			if ctx.IsConnectionClosed() {
				return Unconnected{}, nil
			}
			return Idle{}, nil
		case ConnectionCompleted, ConnectionFailed:
			return Unconnected{}, nil
		}
	}

	return nil, &IllegalEventError{State: s, Event: ev}
}

// failOngoingRequest implements the failure policy for states holding
// an undispatched request. A retryable request is handed back through
// the dispatch path carrying the failure, for the pool to re-enqueue,
// and the slot releases it at once. A non-retryable request keeps
// flowing through WaitingForResponseDispatch so its failure is
// reported with the normal output ordering.
func failOngoingRequest(ctx Context, rc *request.Context, reqEntityPending bool, cause error) State {
	if rc.CanBeRetried() {
		ctx.DispatchResult(rc, request.Failure(cause))
		if reqEntityPending {
			return WaitingForEndOfRequestEntity{}
		}
		return Unconnected{}
	}
	return WaitingForResponseDispatch{
		Req:              rc,
		Result:           request.Failure(cause),
		ReqEntityPending: reqEntityPending,
	}
}

// ignoreConnectionEvent handles connection lifecycle events arriving
// in states whose exchange result is already determined: the receiver
// owns the outcome now, so the slot stays put and the connection is
// dealt with when the state resolves.
func ignoreConnectionEvent(ctx Context, s State, ev Event) State {
	ctx.Log().Debugw("ignoring connection event, result already determined",
		"state", s.Name(), "event", ev.Name())
	return s
}

// applyShutdown processes the Shutdown event in any state. A busy slot
// logs and drops its request without settling its promise (the pool's
// shutdown path settles every outstanding handle); idle states are
// unaffected.
func applyShutdown(s State, ctx Context) State {
	if rc := OngoingRequest(s); rc != nil {
		ctx.Log().Warnw("pool shutting down, dropping in-flight request",
			"state", s.Name(),
			"method", rc.Request.Method,
			"url", rc.Request.URL.String())
	}
	switch s.(type) {
	case Unconnected, PreConnecting, Idle:
		return s
	default:
		return Unconnected{}
	}
}

// OngoingRequest returns the request context owned by the given state,
// or nil for states that hold none. The slot runtime uses it to find
// the handle to settle when a slot is torn down.
func OngoingRequest(s State) *request.Context {
	switch st := s.(type) {
	case Connecting:
		return st.Req
	case WaitingForResponse:
		return st.Req
	case WaitingForResponseDispatch:
		return st.Req
	case WaitingForResponseEntitySubscription:
		return st.Req
	case WaitingForEndOfResponseEntity:
		return st.Req
	default:
		return nil
	}
}
